package domain

// Candidate is the structured output parsed from a raw provider response,
// prior to validation. Field names follow the prompt contract; Title and
// Topic are aliases normalized by the parser.
type Candidate struct {
	Title            string            `json:"title"`
	Topic            string            `json:"topic"`
	Hook             string            `json:"hook"`
	Body             string            `json:"body"`
	CTA              string            `json:"cta"`
	Caption          string            `json:"caption"`
	Hashtags         []string          `json:"hashtags"`
	Headline         string            `json:"headline"`
	Slides           []string          `json:"slides"`
	PlatformCaptions map[string]string `json:"platform_captions"`
}
