package node

import (
	"github.com/jrundle/nd-coin/blockchain"
	"github.com/jrundle/nd-coin/network"
	"go.uber.org/zap"
)

// ingressHandler implements network.Handler, depositing decoded wire
// messages onto the node's queues. It reads the chain only to answer
// catch-up requests — the maintainer owns all chain mutation.
type ingressHandler struct {
	chain  *blockchain.BlockChain
	queues *Queues
	logger *zap.SugaredLogger
}

func newIngressHandler(chain *blockchain.BlockChain, queues *Queues, logger *zap.SugaredLogger) *ingressHandler {
	return &ingressHandler{chain: chain, queues: queues, logger: logger}
}

func (h *ingressHandler) HandleBlock(b *blockchain.Block) {
	select {
	case h.queues.Blocks <- b:
	default:
		h.logger.Warnw("block queue full, dropping received block", "height", b.Height)
	}
}

func (h *ingressHandler) HandleBlockList(blocks []*blockchain.Block) {
	for _, b := range blocks {
		h.HandleBlock(b)
	}
}

func (h *ingressHandler) HandleTransaction(t *blockchain.Transaction) {
	h.queues.BroadcastTxn(t)
}

// HandleBlockRequest answers an incremental catch-up request with a
// block-list broadcast of the active branch from the requested height
// up through the head. Broadcasting rather than replying point-to-
// point keeps ingress connections one-message-only; the requester
// picks the list up like any other peer.
func (h *ingressHandler) HandleBlockRequest(req network.BlockRequest) {
	blocks := h.chain.BranchBlocks(req.Height)
	if len(blocks) == 0 {
		h.logger.Debugw("block_request for a height past our head, ignoring", "height", req.Height)
		return
	}
	frame, err := network.EncodeBlockList(blocks)
	if err != nil {
		h.logger.Errorw("encode block list for catch-up", "error", err)
		return
	}
	select {
	case h.queues.Out <- frame:
	default:
		h.logger.Warnw("egress queue full, dropping catch-up block list", "height", req.Height)
	}
}
