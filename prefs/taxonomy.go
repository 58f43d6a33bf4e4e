package prefs

import "strings"

// categoryKeywords 是查询文本到活动类目的关键词映射。
// 小写子串匹配，一条查询可以命中多个类目。
var categoryKeywords = map[string][]string{
	"conference": {"conference", "summit", "con ", "congress", "forum"},
	"networking": {"networking", "meetup", "mixer", "social", "connect"},
	"workshop":   {"workshop", "tutorial", "hands-on", "bootcamp", "training"},
	"demo_day":   {"demo day", "demo", "pitch", "showcase"},
	"party":      {"party", "afterparty", "drinks", "celebration"},
	"hackathon":  {"hackathon", "hack", "buidl"},
	"crypto":     {"crypto", "blockchain", "bitcoin", "ethereum", "web3", "token"},
	"ai":         {"ai", "artificial intelligence", "machine learning", "llm", "agent"},
	"startup":    {"startup", "founder", "vc", "venture", "fundraising"},
	"defi":       {"defi", "dex", "lending", "yield", "staking"},
	"nft":        {"nft", "collectible", "pfp", "mint"},
	"gaming":     {"gaming", "game", "gamefi", "esports", "metaverse"},
}

// matchCategories 返回查询文本命中的全部类目。
func matchCategories(query string) []string {
	var hits []string
	for category, keywords := range categoryKeywords {
		for _, kw := range keywords {
			if containsFold(query, kw) {
				hits = append(hits, category)
				break
			}
		}
	}
	return hits
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
