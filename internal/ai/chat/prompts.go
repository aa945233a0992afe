package chat

import (
	"fmt"
	"strings"

	"github.com/xbrch/xbrch-saas-platform/pkg/models"
)

const (
	systemPrompt  = "You help small businesses write social media broadcasts. Follow the requested output format exactly."
	websitePrompt = "You write website content for small businesses. Follow the requested output format exactly."
)

// platformGuides describes the constraints of each platform.
var platformGuides = map[string]string{
	models.PlatformX:         "X (Twitter): at most 280 characters, punchy, one or two hashtags.",
	models.PlatformFacebook:  "Facebook: conversational, 1-3 short paragraphs, a clear call to action.",
	models.PlatformLinkedIn:  "LinkedIn: professional, value-focused, 2-4 short paragraphs, no slang.",
	models.PlatformInstagram: "Instagram: visual and energetic caption, line breaks, 3-8 relevant hashtags.",
	models.PlatformWhatsApp:  "WhatsApp: personal direct message, brief, friendly, no hashtags.",
	models.PlatformSMS:       "SMS: at most 160 characters, plain text, no hashtags or emojis.",
}

func platformGuide(platform string) string {
	if g, ok := platformGuides[platform]; ok {
		return g
	}
	return platform
}

func describeProfile(p models.BusinessProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\nCity: %s\nIndustry: %s\nTone: %s\n", p.Name, p.City, p.Industry, p.Tone)
	if p.DefaultCTA != "" {
		fmt.Fprintf(&b, "Preferred call to action: %s\n", p.DefaultCTA)
	}
	if p.WebsiteURL != "" {
		fmt.Fprintf(&b, "Website: %s\n", p.WebsiteURL)
	}
	return b.String()
}

func scorePrompt(req models.ScoreRequest) Prompt {
	user := fmt.Sprintf(`Rate this message for the platform below.

%s
Platform: %s

Message:
%s

Reply with a JSON object only:
{"score": 0-100, "clarity": 0-25, "platform_fit": 0-25, "specificity": 0-20, "cta_strength": 0-15, "brand_alignment": 0-15, "feedback": "one or two sentences"}`,
		describeProfile(req.Profile), platformGuide(req.Platform), req.Message)

	return Prompt{System: systemPrompt, User: user, MaxTokens: 400, Temperature: 0.2}
}

func originalityPrompt(req models.OriginalityRequest) Prompt {
	history := "(none)"
	if len(req.History) > 0 {
		lines := make([]string, len(req.History))
		for i, h := range req.History {
			lines[i] = fmt.Sprintf("%d. %s", i+1, h)
		}
		history = strings.Join(lines, "\n")
	}

	user := fmt.Sprintf(`Assess how original this message is, compared with the business's recent messages and with generic marketing copy.

Message:
%s

Recent messages:
%s

Reply with a JSON object only:
{"originality_score": 0-100, "risk_tier": "Low" | "Minor" | "Moderate" | "High Risk", "issues": ["..."], "suggestions": ["..."]}`,
		req.Message, history)

	return Prompt{System: systemPrompt, User: user, MaxTokens: 400, Temperature: 0.2}
}

func adaptPrompt(req models.AdaptRequest) Prompt {
	user := fmt.Sprintf(`Rewrite this message for the platform below, keeping its meaning and the business's tone.

%s
Platform guidelines: %s

Message:
%s

Reply with the rewritten post text only.`,
		describeProfile(req.Profile), platformGuide(req.Platform), req.Message)

	return Prompt{System: systemPrompt, User: user, MaxTokens: 600, Temperature: 0.7}
}

func announcementPrompt(req models.AnnouncementRequest) Prompt {
	user := fmt.Sprintf(`Write a website announcement based on this message.

%s
Message:
%s

Requirements:
- Title of at most 60 characters, SEO-friendly
- Content of 2-3 HTML paragraphs, no emojis, with a clear call to action
- Mention the city naturally for local search
- Meta description of 150-160 characters
- 5-7 meta keywords, comma separated

Reply with a JSON object only:
{"title": "...", "content": "<p>...</p>", "metaDescription": "...", "metaKeywords": "a, b, c", "cta": "..."}`,
		describeProfile(req.Profile), req.Message)

	return Prompt{System: websitePrompt, User: user, MaxTokens: 500, Temperature: 0.5}
}

func blogPrompt(req models.BlogRequest) Prompt {
	user := fmt.Sprintf(`Write a blog article for the business below.

%s
Topic: %s

Requirements:
- 800-1200 words, educational rather than promotional
- One <h1> title, <h2> sections, <h3> subsections, <p> paragraphs
- Local context where it fits naturally
- Internal link placeholders written as [Link: service-name]

Reply with the HTML only. End it with these two comments:
<!-- META:Description:a meta description of 150-160 characters-->
<!-- META:Keywords:keyword1, keyword2, keyword3-->`,
		describeProfile(req.Profile), req.Topic)

	return Prompt{System: websitePrompt, User: user, MaxTokens: 2000, Temperature: 0.6}
}
