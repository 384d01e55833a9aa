package indexer

import (
	"github.com/btcsuite/btcd/txscript"

	"github.com/yuvprotocol/yuvd/announcement"
	"github.com/yuvprotocol/yuvd/eventbus"
	"github.com/yuvprotocol/yuvd/txcheck"
)

// AnnouncementSubindexer finds YUV announcements carried in OP_RETURN
// outputs of confirmed blocks and forwards each one, past its activation
// height, to the checker over the event bus as a standalone announcement
// transaction — the same path a peer-relayed announcement takes.
type AnnouncementSubindexer struct {
	bus     *eventbus.Bus
	network announcement.Network
}

// NewAnnouncementSubindexer builds a subindexer that rejects announcements
// found below their activation height on network.
func NewAnnouncementSubindexer(bus *eventbus.Bus, network announcement.Network) *AnnouncementSubindexer {
	return &AnnouncementSubindexer{bus: bus, network: network}
}

func (s *AnnouncementSubindexer) Index(block *IndexedBlock) error {
	var found []*txcheck.YuvTransaction

	for _, tx := range block.Txs {
		for _, out := range tx.TxOut {
			if txscript.GetScriptClass(out.PkScript) != txscript.NullDataTy {
				continue
			}

			ann, err := announcement.FromScript(out.PkScript)
			if err != nil {
				continue
			}

			if block.Height < ann.MinimalBlockHeight(s.network) {
				log.Debugf("ignoring announcement in tx %v below activation height "+
					"(block %d < activation %d)", tx.TxHash(),
					block.Height, ann.MinimalBlockHeight(s.network))
				continue
			}

			yuvTx := &txcheck.YuvTransaction{
				BitcoinTx:    tx,
				Kind:         txcheck.TxKindAnnouncement,
				Announcement: ann,
			}

			// A standalone issue announcement is recorded specially so a
			// later full Issue transaction with the same txid can still
			// override it.
			if issueAnn, ok := ann.(*announcement.IssueAnnouncement); ok {
				yuvTx.IssueAnnouncement = issueAnn
			}

			found = append(found, yuvTx)

			// A transaction carries at most one announcement output; move
			// on to the next transaction once one is found.
			break
		}
	}

	if len(found) > 0 {
		eventbus.Publish(s.bus, eventbus.ConfirmBatchTx{Txs: found})
	}
	return nil
}
