package classify

// Valence lexicon for the built-in analyzer. Values are in [-1, 1]. Kept
// deliberately small: the analyzer is the deterministic default, not a
// replacement for a real NLP service.
var valenceLexicon = map[string]float64{
	// positive
	"good": 0.5, "great": 0.7, "excellent": 0.9, "amazing": 0.9,
	"awesome": 0.8, "fantastic": 0.9, "love": 0.8, "loved": 0.8,
	"helpful": 0.6, "friendly": 0.6, "fast": 0.4, "easy": 0.4,
	"satisfied": 0.6, "happy": 0.7, "perfect": 0.9, "recommend": 0.6,
	"smooth": 0.5, "professional": 0.5, "polite": 0.5, "clean": 0.4,
	"best": 0.8, "nice": 0.5, "pleased": 0.6, "impressed": 0.7,

	// negative
	"bad": -0.5, "poor": -0.6, "terrible": -0.9, "horrible": -0.9,
	"awful": -0.8, "hate": -0.8, "hated": -0.8, "worst": -0.9,
	"slow": -0.4, "rude": -0.7, "dirty": -0.6, "broken": -0.6,
	"disappointed": -0.7, "disappointing": -0.7, "frustrated": -0.7,
	"frustrating": -0.7, "angry": -0.8, "upset": -0.6, "useless": -0.8,
	"unacceptable": -0.8, "delayed": -0.5, "expensive": -0.4,
	"overpriced": -0.6, "confusing": -0.5, "difficult": -0.4,
	"unhelpful": -0.6, "ignored": -0.7, "waiting": -0.3, "refund": -0.5,
	"complaint": -0.6, "problem": -0.5, "issue": -0.4, "never": -0.3,
}

// emotionLexicon maps trigger words to coarse emotion labels.
var emotionLexicon = map[string]string{
	"angry": "anger", "furious": "anger", "rude": "anger",
	"unacceptable": "anger", "outraged": "anger",
	"disappointed": "disappointment", "disappointing": "disappointment",
	"letdown": "disappointment",
	"frustrated": "frustration", "frustrating": "frustration",
	"annoyed": "frustration", "annoying": "frustration",
	"happy": "joy", "delighted": "joy", "love": "joy", "loved": "joy",
	"pleased": "joy", "amazing": "joy",
	"worried": "concern", "concerned": "concern", "afraid": "concern",
	"confused": "confusion", "confusing": "confusion",
	"thankful": "gratitude", "grateful": "gratitude", "thanks": "gratitude",
	"thank": "gratitude",
}

// themeLexicon maps keywords to response themes for aggregation.
var themeLexicon = map[string]string{
	"price": "pricing", "expensive": "pricing", "overpriced": "pricing",
	"cost": "pricing", "charge": "pricing", "charged": "pricing",
	"fee": "pricing", "refund": "pricing", "billing": "pricing",
	"staff": "staff", "employee": "staff", "agent": "staff",
	"manager": "staff", "rude": "staff", "friendly": "staff",
	"polite": "staff", "professional": "staff",
	"delivery": "delivery", "shipping": "delivery", "delayed": "delivery",
	"late": "delivery", "arrived": "delivery",
	"quality": "quality", "broken": "quality", "defective": "quality",
	"damaged": "quality", "dirty": "quality", "clean": "quality",
	"support": "support", "service": "support", "help": "support",
	"helpful": "support", "unhelpful": "support", "response": "support",
	"waiting": "support", "ignored": "support",
	"website": "digital", "app": "digital", "login": "digital",
	"checkout": "digital", "confusing": "digital",
}

// negators invert the valence of the following token.
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "hardly": true,
	"isnt": true, "wasnt": true, "dont": true, "didnt": true,
	"cant": true, "wont": true, "couldnt": true, "wouldnt": true,
}

// intensifiers scale the valence of the following token.
var intensifiers = map[string]float64{
	"very": 1.5, "really": 1.5, "extremely": 1.8, "so": 1.3,
	"totally": 1.5, "absolutely": 1.8, "quite": 1.2,
}

// stopwords are excluded from keyword extraction.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "was": true, "were": true, "are": true, "have": true,
	"has": true, "had": true, "but": true, "they": true, "them": true,
	"their": true, "there": true, "then": true, "than": true, "from": true,
	"your": true, "you": true, "our": true, "about": true, "would": true,
	"could": true, "should": true, "been": true, "being": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "will": true,
	"just": true, "very": true, "really": true, "much": true, "more": true,
	"some": true, "also": true, "into": true, "over": true, "because": true,
}
