// Package assistant answers trend questions with a text generator, falling
// back to templated responses when generation is unavailable.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/models"
	"github.com/trendzee/live-trends/internal/query"
)

const (
	historyWindow = 6
	contextLimit  = 5
)

const trendSystem = `You are a Trend Intelligence Assistant for TrendZee.
Your ONLY job is to analyze trend data provided to you.
Do NOT answer questions unrelated to trends, social media, or the data provided.
Be concise, insightful, and data-driven in your responses.
Format your responses in clean readable paragraphs.`

const chatSystem = `You are TrendZee's Trend Intelligence Assistant.
You ONLY answer questions about social media trends, engagement, content strategy, and the data provided.
If asked about anything unrelated to trends, politely decline.
Be concise, insightful, and reference the provided trend data when relevant.`

const (
	// OffTopicResponse is returned for questions with no trend relevance
	OffTopicResponse = "I can only answer questions related to trend data and social media intelligence " +
		"available on this platform. Please ask me about trends, viral content, engagement strategies, " +
		"or specific categories like entertainment, technology, sports, etc."

	// QuotaResponse is returned when the generator's quota is exhausted
	QuotaResponse = "⚠️ The AI service has reached its daily usage limit. " +
		"Please try again later, once the quota resets (usually within 24 hours)."

	// UnavailableResponse is returned when generation fails for any other reason
	UnavailableResponse = "I'm having trouble processing your request right now. Please try again."

	engineFooter = "*(AI analysis: powered by TrendZee Intelligence Engine)*"
	quotaFooter  = "*(⚠️ AI daily quota exhausted. Showing cached analysis. Quota resets within 24 hours.)*"
)

// relevanceTerms mark a question as on-topic even with no matching trends
var relevanceTerms = []string{
	"trend", "viral", "popular", "hashtag", "engagement", "platform",
	"social", "content", "creator", "post", "reel", "video", "tiktok",
	"instagram", "twitter", "youtube", "reddit", "music", "sports",
	"gaming", "fashion", "technology", "entertainment", "meme", "marketing",
	"audience", "reach", "impressions", "influencer", "analytics",
}

// Message is one turn of a chat history
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Assistant builds prompts from trend data. A nil generator serves the
// templated responses only.
type Assistant struct {
	generator Generator
	trends    *query.Service
}

// New creates an assistant
func New(generator Generator, trends *query.Service) *Assistant {
	return &Assistant{generator: generator, trends: trends}
}

// ExplainTrend describes why a trend is gaining traction
func (a *Assistant) ExplainTrend(ctx context.Context, t models.Trend) string {
	if a.generator == nil {
		return templateExplanation(t, false)
	}

	prompt := fmt.Sprintf(`Analyze this social media trend and explain why it is gaining traction:

Title: %s
Category: %s
Platform: %s
Description: %s
Engagement Score: %.1f
Velocity: %s
Likes: %d
Shares: %d
Comments: %d

Provide a clear, insightful analysis of:
1. Why this trend is gaining momentum
2. What audience it appeals to
3. What makes it shareable/viral
Keep your response to 3-4 concise paragraphs.`,
		t.Title, t.Category, t.Platform, t.Description, t.Score, t.Velocity, t.Likes, t.Shares, t.Comments)

	text, err := a.generator.Generate(ctx, prompt, trendSystem)
	switch {
	case errors.Is(err, ErrQuotaExhausted):
		return templateExplanation(t, true)
	case err != nil:
		logrus.WithField("trend_id", t.ID).Warnf("Explanation generation failed: %v", err)
		return templateExplanation(t, false)
	}
	return text
}

// CreatorInsights produces a content strategy for a trend
func (a *Assistant) CreatorInsights(ctx context.Context, t models.Trend) string {
	if a.generator == nil {
		return templateInsights(t)
	}

	prompt := fmt.Sprintf(`Generate comprehensive creator strategy insights for this trend:

Title: %s
Category: %s
Platform: %s
Description: %s
Engagement Score: %.1f
Total Engagement: %d
Velocity: %s

Provide:
1. **Suggested Hashtags** (10-15 relevant hashtags)
2. **Caption Format** (hook + body + CTA structure)
3. **Target Audience** (demographics and psychographics)
4. **Content Strategy** (format, timing, frequency recommendations)
5. **Engagement Tactics** (specific actions to boost interaction)

Format the response with clear headings for each section.
Be specific and actionable.`,
		t.Title, t.Category, t.Platform, t.Description, t.Score, t.TotalEngagement(), t.Velocity)

	text, err := a.generator.Generate(ctx, prompt, trendSystem)
	if err != nil {
		logrus.WithField("trend_id", t.ID).Warnf("Insights generation failed: %v", err)
		return templateInsights(t)
	}
	return text
}

// Chat answers a trend question using matching trends as context. Only
// the last six history messages are forwarded.
func (a *Assistant) Chat(ctx context.Context, question string, history []Message) (string, error) {
	keywords := query.ExtractKeywords(question)
	relevant, err := a.trends.SearchForContext(ctx, keywords, contextLimit)
	if err != nil {
		return "", fmt.Errorf("failed to load trend context: %w", err)
	}

	if len(relevant) == 0 && !IsTrendRelated(question) {
		return OffTopicResponse, nil
	}

	if a.generator == nil {
		return templateChat(relevant), nil
	}

	text, err := a.generator.Generate(ctx, chatPrompt(question, relevant, history), chatSystem)
	switch {
	case errors.Is(err, ErrQuotaExhausted):
		return QuotaResponse, nil
	case err != nil:
		logrus.Warnf("Chat generation failed: %v", err)
		return UnavailableResponse, nil
	}
	return text, nil
}

// IsTrendRelated reports whether a question mentions a trend-related term
func IsTrendRelated(question string) bool {
	lower := strings.ToLower(question)
	for _, term := range relevanceTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func chatPrompt(question string, relevant []models.ContextTrend, history []Message) string {
	var b strings.Builder

	if len(relevant) > 0 {
		b.WriteString("Here are the relevant trends from our platform:\n\n")
		for i, t := range relevant {
			description := t.Description
			if r := []rune(description); len(r) > 200 {
				description = string(r[:200])
			}
			fmt.Fprintf(&b, "%d. **%s** (%s | %s)\n   Score: %.1f | Velocity: %s\n   %s\n\n",
				i+1, t.Title, t.Platform, t.Category, t.Score, t.Velocity, description)
		}
	} else {
		b.WriteString("No directly matching trends found for your query, but I can answer based on general trend intelligence.\n")
	}

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	b.WriteString("\nPrevious conversation:\n")
	for _, msg := range history {
		role := msg.Role
		if role == "" {
			role = "user"
		}
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(role[:1])+role[1:], msg.Content)
	}

	fmt.Fprintf(&b, "\nUser question: %s\n\nAnswer based only on the trend data and your knowledge of social media trends.", question)
	return b.String()
}

func templateExplanation(t models.Trend, quotaExhausted bool) string {
	footer := engineFooter
	if quotaExhausted {
		footer = quotaFooter
	}

	return fmt.Sprintf("**%s** is gaining significant traction across %s with an engagement score of %.1f. "+
		"The trend falls under the %s category, which is currently showing %s velocity.\n\n"+
		"With %d likes, %d shares, and %d comments, the engagement rate suggests authentic audience "+
		"connection rather than passive consumption.\n\n"+
		"The %s velocity indicator suggests this trend has staying power in the immediate term.\n\n%s",
		t.Title, t.Platform, t.Score, t.Category, t.Velocity,
		t.Likes, t.Shares, t.Comments, t.Velocity, footer)
}

func templateInsights(t models.Trend) string {
	return fmt.Sprintf(`## Creator Strategy Insights for %q

**Suggested Hashtags**
#%s #trending #viral #%s #contentcreator #socialmedia #engagement #%scontent #trendalert #explore

**Caption Format**
Hook: Open with a bold statement or question that addresses the trend directly.
Body: Share your own angle on %q and add value, humor, or education.
CTA: "Follow for more %s trends | Drop your thoughts below"

**Target Audience**
Primary: 18-34 year-olds active on %s, interested in %s content.
Secondary: Creators and marketers looking to capitalize on trending topics.

**Content Strategy**
- Format: short-form video (15-60 seconds)
- Timing: post between 6-9 PM local time
- Frequency: 1-2 posts per day while velocity is %s

**Engagement Tactics**
- Reply to every comment within the first hour
- Use the trend's primary hashtag as the first comment
- Cross-post across platforms to maximize reach

%s`,
		t.Title, t.Category, t.Platform, t.Category, t.Title, t.Category,
		t.Platform, t.Category, t.Velocity, engineFooter)
}

func templateChat(relevant []models.ContextTrend) string {
	if len(relevant) == 0 {
		return "I'm your Trend Intelligence Assistant. I can help you understand trending topics, " +
			"analyze engagement patterns, and develop content strategies based on real trend data. " +
			"Try asking \"What's trending in tech?\" or \"What makes gaming content go viral?\"\n\n" + engineFooter
	}

	var names []string
	for i, t := range relevant {
		if i >= 3 {
			break
		}
		names = append(names, t.Title)
	}

	return fmt.Sprintf("Based on current trend data, the most relevant trending topics are: **%s**. "+
		"These are showing strong engagement signals on our platform. Would you like me to dive deeper "+
		"into any of them, their engagement patterns, or content strategy?\n\n%s",
		strings.Join(names, ", "), engineFooter)
}
