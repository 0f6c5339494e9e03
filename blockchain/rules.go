package blockchain

import "time"

// Tunables fixed at build time. MinZeros is high enough to exercise
// the proof-of-work predicate meaningfully, low enough that genesis
// and tests mine in well under a second.
const (
	MiningReward     = 50
	MinZeros         = 18
	MinerWaitTimeout = 5 * time.Second
	MaxTxnCount      = 16
	MaxBlocksBehind  = 10
)
