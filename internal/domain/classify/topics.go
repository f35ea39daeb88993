package classify

// Base confidence values.
const (
	DefaultConfidence       = 0.8
	HighPrecisionConfidence = 0.95
)

// Topic is one named entry of the classification table.
type Topic struct {
	Name       string
	Confidence float64
	Keywords   []string
}

// DefaultTopics is the curated table, in match order.
func DefaultTopics() []Topic {
	return []Topic{
		{Name: "ai", Confidence: DefaultConfidence, Keywords: []string{
			"artificial intelligence", "machine learning", "neural net", "neural network",
			"deep learning", "LLM", "GPT", "ChatGPT", "Claude", "OpenAI", "Anthropic",
			"Gemini", "Llama", "Mistral", "transformer", "fine-tune", "fine-tuning",
			"RLHF", "diffusion model", "stable diffusion", "midjourney", "DALL-E",
			"copilot", "AI agent", "large language model", "generative AI",
			"foundation model", "prompt engineer", "RAG", "retrieval augmented",
			"computer vision", "NLP", "natural language processing",
			"reinforcement learning", "AGI", "superintelligence", "AI safety", "alignment",
		}},
		{Name: "openclaw", Confidence: HighPrecisionConfidence, Keywords: []string{
			"OpenClaw", "Clawdbot", "lobstream", "open claw", "open-claw",
		}},
		{Name: "politics", Confidence: DefaultConfidence, Keywords: []string{
			"election", "congress", "senate", "president", "democrat", "republican",
			"liberal", "conservative", "policy", "legislation", "capitol", "governor",
			"parliament", "prime minister", "Biden", "Trump", "vote", "ballot",
			"campaign", "political", "partisan", "bipartisan", "impeach",
			"Supreme Court", "SCOTUS", "executive order",
			"capitalism", "socialism", "socialist", "fascism", "fascist",
			"antifascist", "anti-fascist", "inequality", "wealth gap", "billionaire",
			"oligarch", "working class", "union", "labor", "strike", "mutual aid",
			"solidarity", "abolish", "defund", "Medicare", "universal healthcare",
			"living wage", "minimum wage", "housing crisis", "gentrification",
			"climate justice", "racial justice", "social justice", "reparations",
			"colonialism", "imperialism", "propaganda", "protest", "activism",
			"activist", "grassroots", "progressive", "human rights", "civil rights",
			"LGBTQ", "trans rights", "reproductive rights", "abortion", "Roe v Wade",
			"authoritarianism", "white supremacy", "neo-nazi", "far right", "alt-right",
			"insurrection", "disinformation", "corporate greed",
			"late capitalism", "eat the rich", "class war", "austerity",
			"privatization", "nationalize",
		}},
		{Name: "crypto", Confidence: DefaultConfidence, Keywords: []string{
			"bitcoin", "ethereum", "crypto", "blockchain", "NFT", "DeFi", "web3",
			"token", "solana", "dogecoin", "mining", "wallet", "exchange", "BTC",
			"ETH", "cryptocurrency", "decentralized", "smart contract", "Coinbase",
			"Binance", "altcoin", "stablecoin",
		}},
		{Name: "finance", Confidence: DefaultConfidence, Keywords: []string{
			"stock market", "Wall Street", "S&P 500", "Dow Jones", "NASDAQ",
			"Federal Reserve", "interest rate", "inflation", "recession",
			"bull market", "bear market", "IPO", "hedge fund", "private equity",
			"earnings", "dividend", "bonds", "treasury", "yield curve", "forex",
			"commodities", "fintech", "banking", "JPMorgan", "Goldman Sachs",
			"venture capital",
		}},
		{Name: "geopolitics", Confidence: DefaultConfidence, Keywords: []string{
			"geopolitics", "foreign policy", "diplomacy", "sanctions", "NATO",
			"United Nations", "European Union", "G7", "G20", "BRICS", "trade war",
			"tariff", "embargo", "treaty", "summit", "Ukraine", "Russia", "China",
			"Taiwan", "Middle East", "Gaza", "Israel", "Iran", "North Korea", "OPEC",
			"coup", "Pentagon", "CIA", "nuclear", "missile", "defense", "military",
			"refugee", "immigration", "climate change", "World Bank", "IMF", "WTO",
			"Brexit", "sovereignty",
		}},
		{Name: "tech", Confidence: DefaultConfidence, Keywords: []string{
			"programming", "software", "developer", "startup", "silicon valley",
			"app", "code", "open source", "GitHub", "API", "database",
			"cloud computing", "cybersecurity", "SaaS", "DevOps", "microservices",
			"kubernetes", "docker", "frontend", "backend", "full stack",
			"JavaScript", "Python", "Rust", "Go", "TypeScript",
		}},
		{Name: "science", Confidence: DefaultConfidence, Keywords: []string{
			"research", "study", "NASA", "climate", "physics", "biology", "chemistry",
			"genome", "CRISPR", "quantum", "telescope", "Mars", "experiment",
			"peer review", "journal", "scientist", "discovery", "breakthrough",
			"evolution", "vaccine", "neuroscience",
		}},
	}
}
