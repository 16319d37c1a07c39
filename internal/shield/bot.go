package shield

import (
	"context"
	"strings"
)

// Bot categories.
const (
	CategoryTool         = "CATEGORY:TOOL"
	CategoryHeadless     = "CATEGORY:HEADLESS"
	CategorySearchEngine = "CATEGORY:SEARCH_ENGINE"
	CategoryMonitor      = "CATEGORY:MONITOR"
	CategoryAI           = "CATEGORY:AI"
	CategoryUnknown      = "CATEGORY:UNKNOWN"
)

// BotInfo is the classification of a User-Agent.
type BotInfo struct {
	IsBot    bool
	Name     string
	Category string
}

type botSignature struct {
	pattern  string
	name     string
	category string
}

// Order matters: specific names before the generic crawler markers.
var botSignatures = []botSignature{
	{"headlesschrome", "HEADLESS_CHROME", CategoryHeadless},
	{"phantomjs", "PHANTOMJS", CategoryHeadless},
	{"puppeteer", "PUPPETEER", CategoryHeadless},
	{"playwright", "PLAYWRIGHT", CategoryHeadless},
	{"selenium", "SELENIUM", CategoryHeadless},
	{"curl/", "CURL", CategoryTool},
	{"wget/", "WGET", CategoryTool},
	{"httpie/", "HTTPIE", CategoryTool},
	{"python-requests", "PYTHON_REQUESTS", CategoryTool},
	{"python-urllib", "PYTHON_URLLIB", CategoryTool},
	{"aiohttp", "PYTHON_AIOHTTP", CategoryTool},
	{"go-http-client", "GO_HTTP", CategoryTool},
	{"okhttp", "OKHTTP", CategoryTool},
	{"java/", "JAVA_HTTP", CategoryTool},
	{"libwww-perl", "PERL_LWP", CategoryTool},
	{"postmanruntime", "POSTMAN", CategoryTool},
	{"insomnia", "INSOMNIA", CategoryTool},
	{"scrapy", "SCRAPY", CategoryTool},
	{"googlebot", "GOOGLE_CRAWLER", CategorySearchEngine},
	{"bingbot", "BING_CRAWLER", CategorySearchEngine},
	{"duckduckbot", "DUCKDUCKGO_CRAWLER", CategorySearchEngine},
	{"yandexbot", "YANDEX_CRAWLER", CategorySearchEngine},
	{"baiduspider", "BAIDU_CRAWLER", CategorySearchEngine},
	{"uptimerobot", "UPTIMEROBOT", CategoryMonitor},
	{"pingdom", "PINGDOM", CategoryMonitor},
	{"statuscake", "STATUSCAKE", CategoryMonitor},
	{"gptbot", "OPENAI_CRAWLER", CategoryAI},
	{"ccbot", "COMMONCRAWL_CRAWLER", CategoryAI},
	{"bytespider", "BYTEDANCE_CRAWLER", CategoryAI},
	{"perplexitybot", "PERPLEXITY_CRAWLER", CategoryAI},
	{"bot", "GENERIC_BOT", CategoryUnknown},
	{"crawler", "GENERIC_CRAWLER", CategoryUnknown},
	{"spider", "GENERIC_SPIDER", CategoryUnknown},
}

// ClassifyUserAgent matches ua against known automated clients. A missing
// User-Agent is treated as automated.
func ClassifyUserAgent(ua string) BotInfo {
	ua = strings.ToLower(strings.TrimSpace(ua))
	if ua == "" {
		return BotInfo{IsBot: true, Name: "MISSING_USER_AGENT", Category: CategoryUnknown}
	}
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig.pattern) {
			return BotInfo{IsBot: true, Name: sig.name, Category: sig.category}
		}
	}
	return BotInfo{}
}

// BotRule denies automated clients unless their name or category is allowed.
type BotRule struct {
	mode  Mode
	allow map[string]struct{}
}

// NewBotRule builds a bot rule. allow holds bot names or categories.
func NewBotRule(mode Mode, allow []string) *BotRule {
	set := make(map[string]struct{}, len(allow))
	for _, a := range allow {
		set[strings.ToUpper(strings.TrimSpace(a))] = struct{}{}
	}
	return &BotRule{mode: mode, allow: set}
}

func (r *BotRule) Name() string { return "bot" }
func (r *BotRule) Mode() Mode   { return r.mode }

func (r *BotRule) Evaluate(_ context.Context, req Request) (RuleResult, error) {
	info := ClassifyUserAgent(req.UserAgent)
	if !info.IsBot || r.allowed(info) {
		return RuleResult{Conclusion: ConclusionAllow}, nil
	}
	return RuleResult{
		Conclusion: ConclusionDeny,
		Reason: Reason{
			Kind: ReasonBot,
			Bot:  &BotReason{Name: info.Name, Category: info.Category},
		},
	}, nil
}

func (r *BotRule) allowed(info BotInfo) bool {
	if _, ok := r.allow[info.Name]; ok {
		return true
	}
	_, ok := r.allow[info.Category]
	return ok
}
