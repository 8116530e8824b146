package registry

// DefaultConfig is the built-in source catalog used when the config file
// does not list any feeds.
func DefaultConfig() Config {
	return Config{
		Feeds: map[string][]FeedConfig{
			"general": {
				{Name: "BBC World", URL: "http://feeds.bbci.co.uk/news/world/rss.xml"},
				{Name: "NPR World", URL: "https://www.npr.org/rss/rss.php?id=1001"},
				{Name: "NYT Home", URL: "https://rss.nytimes.com/services/xml/rss/nyt/HomePage.xml"},
				{Name: "The Guardian World", URL: "https://www.theguardian.com/world/rss"},
				{Name: "UN News", URL: "https://news.un.org/feed/subscribe/en/news/all/rss.xml"},
				{Name: "Al Jazeera", URL: "https://www.aljazeera.com/xml/rss/all.xml"},
			},
			"financial": {
				{Name: "MarketWatch", URL: "https://feeds.marketwatch.com/marketwatch/topstories"},
				{Name: "CNBC", URL: "https://www.cnbc.com/id/100003114/device/rss/rss.html"},
				{Name: "Investing.com", URL: "https://www.investing.com/rss/news_25.rss"},
				{Name: "Seeking Alpha", URL: "https://seekingalpha.com/feed.xml"},
				{Name: "Motley Fool", URL: "https://www.fool.com/feeds/index.aspx"},
				{Name: "Kiplinger", URL: "https://www.kiplinger.com/feed/all"},
			},
			"gaming": {
				{Name: "Kotaku", URL: "https://kotaku.com/rss"},
				{Name: "Polygon", URL: "https://feeds.feedburner.com/Polygon"},
				{Name: "PC Gamer", URL: "https://www.pcgamer.com/rss/"},
				{Name: "GameSpot", URL: "https://www.gamespot.com/feeds/news/"},
				{Name: "Rock Paper Shotgun", URL: "https://feeds.feedburner.com/RockPaperShotgun"},
				{Name: "Eurogamer", URL: "https://www.eurogamer.net/?format=rss"},
			},
			"scitech": {
				{Name: "TechCrunch", URL: "https://techcrunch.com/feed/"},
				{Name: "Ars Technica", URL: "https://feeds.arstechnica.com/arstechnica/index/"},
				{Name: "NYT Science", URL: "https://rss.nytimes.com/services/xml/rss/nyt/Science.xml"},
				{Name: "Wired", URL: "https://www.wired.com/feed/rss"},
				{Name: "Engadget", URL: "https://www.engadget.com/rss.xml"},
				{Name: "Tom's Hardware", URL: "https://www.tomshardware.com/feeds/all"},
			},
		},
		Symbols: []Symbol{
			{Symbol: "AAPL", Name: "Apple"}, {Symbol: "GOOGL", Name: "Alphabet"},
			{Symbol: "MSFT", Name: "Microsoft"}, {Symbol: "AMZN", Name: "Amazon"},
			{Symbol: "META", Name: "Meta"}, {Symbol: "TSLA", Name: "Tesla"},
			{Symbol: "NFLX", Name: "Netflix"}, {Symbol: "NVDA", Name: "NVIDIA"},
			{Symbol: "AMD", Name: "AMD"}, {Symbol: "INTC", Name: "Intel"},
			{Symbol: "JPM", Name: "JPMorgan Chase"}, {Symbol: "BAC", Name: "Bank of America"},
			{Symbol: "WFC", Name: "Wells Fargo"}, {Symbol: "GS", Name: "Goldman Sachs"},
			{Symbol: "C", Name: "Citigroup"}, {Symbol: "XOM", Name: "Exxon Mobil"},
			{Symbol: "CVX", Name: "Chevron"}, {Symbol: "BP", Name: "BP"},
			{Symbol: "COP", Name: "ConocoPhillips"}, {Symbol: "OXY", Name: "Occidental"},
			{Symbol: "PFE", Name: "Pfizer"}, {Symbol: "JNJ", Name: "Johnson & Johnson"},
			{Symbol: "MRNA", Name: "Moderna"}, {Symbol: "BMY", Name: "Bristol-Myers Squibb"},
			{Symbol: "LLY", Name: "Eli Lilly"},
		},
	}
}

// Default builds the built-in catalog. It cannot fail.
func Default() *Registry {
	r, err := New(DefaultConfig())
	if err != nil {
		panic("registry: invalid default catalog: " + err.Error())
	}
	return r
}
