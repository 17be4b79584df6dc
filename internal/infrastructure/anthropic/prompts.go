package anthropic

import "strings"

// Prompt variants. V1 is the production prompt; V2 adds the retrieval
// context slot; the rest exist for shadow A/B comparison. Wording is a
// tunable, not engine logic.

const tweetsSlot = "{{tweets}}"
const contextSlot = "{{context}}"

const promptV1 = `You are curating a Twitter feed for an Ethereum protocol researcher working on based rollups, preconfirmations, TEE proving and L1-L2 synchronous composability.

Score each tweet 0-100 based on relevance:

90-100: Directly about their active work
  - Based rollups, preconfirmations, sequencer design
  - TEE-based proving, L1-L2 composability
75-89: Core research areas
  - MEV, OFA, PBS, block building
  - Account Abstraction (ERC-4337, ERC-7702)
  - Censorship resistance, ZK proofs, Data Availability
50-74: Adjacent technical content
  - L2 architecture deep-dives, EIPs, hard fork planning
  - Smart contract security, audit findings
0-49: Not relevant - skip
  - Price speculation, NFT drops, meme coins
  - Engagement farming, giveaways, drama

Return JSON array:
[{"tweet_id": "...", "score": 85, "reason": "..."}]

Tweets to filter:
{{tweets}}`

const promptV2 = `You are curating a Twitter feed for an Ethereum protocol researcher working on based rollups, preconfirmations, TEE proving and L1-L2 synchronous composability.

## User Feedback Context
Based on past feedback, here are similar tweets the user has voted on:

{{context}}

Use this context to adjust your scores. If a new tweet is similar to liked tweets, boost its score. If similar to disliked tweets, lower it.

Score each tweet 0-100 based on relevance:

90-100: Directly about their active work
75-89: Core research areas (MEV, PBS, Account Abstraction, ZK, DA)
50-74: Adjacent technical content
0-49: Not relevant - skip

Return JSON array:
[{"tweet_id": "...", "score": 85, "reason": "..."}]

Tweets to filter:
{{tweets}}`

const promptV3 = `Score these tweets 0-100 for an Ethereum protocol researcher with these interests (highest to lowest priority):

Must-see (90-100): based rollups, preconfirmations, sequencer design, TEE proving, L1-L2 composability
High interest (75-89): MEV, OFA, PBS, Account Abstraction, censorship resistance, ZK proofs, Data Availability, L2 architecture, EIPs, security audits
Some interest (50-74): general Ethereum ecosystem news, governance, developer tooling
Skip (0-49): price talk, NFTs, meme coins, engagement farming, drama

Return JSON array:
[{"tweet_id": "...", "score": 85, "reason": "..."}]

Tweets to filter:
{{tweets}}`

const promptV4 = `You are filtering tweets for an Ethereum protocol researcher. For each tweet, decide: would this person want to read it? Be selective.

Score 70-100 for YES (worth reading), 0-49 for NO (skip).
Avoid scores in 50-69 - commit to a clear decision.

Return JSON array:
[{"tweet_id": "...", "score": 85, "reason": "..."}]

Tweets to filter:
{{tweets}}`

const promptV5 = `You are aggressively filtering tweets. Most tweets should be SKIPPED. Only pass tweets that an Ethereum protocol researcher would genuinely benefit from reading. When in doubt, SKIP.

SKIP (0-49): price speculation, NFTs, memes, engagement farming, marketing without technical depth, surface-level news.
PASS (70-100): based rollups, preconfirmations, TEE proving, MEV/PBS research, Account Abstraction, ZK proofs, Data Availability, deep L2 architecture, EIP analysis, security findings.

Return JSON array:
[{"tweet_id": "...", "score": 85, "reason": "..."}]

Tweets to filter:
{{tweets}}`

var promptRegistry = map[string]string{
	"V1": promptV1,
	"V2": promptV2,
	"V3": promptV3,
	"V4": promptV4,
	"V5": promptV5,
}

// renderPrompt fills the tweet and context slots of a template. The
// context slot is only present in RAG-aware variants.
func renderPrompt(template, tweetsJSON, ragContext string) string {
	return strings.NewReplacer(
		tweetsSlot, tweetsJSON,
		contextSlot, ragContext,
	).Replace(template)
}
