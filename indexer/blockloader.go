package indexer

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/btcsuite/btcd/wire"
)

const defaultBlockLoaderWorkers = 4

// loadBlocks fetches every height in [from, to] concurrently, bounded by
// defaultBlockLoaderWorkers, and returns them in height order. It mirrors
// the teacher's pattern for bounding concurrent work with errgroup.SetLimit
// instead of a hand-rolled worker pool.
func loadBlocks(client BitcoinClient, from, to uint32) ([]*wire.MsgBlock, error) {
	if to < from {
		return nil, nil
	}

	count := int(to-from) + 1
	blocks := make([]*wire.MsgBlock, count)

	var eg errgroup.Group
	eg.SetLimit(defaultBlockLoaderWorkers)

	for i := 0; i < count; i++ {
		height := from + uint32(i)
		idx := i

		eg.Go(func() error {
			hash, err := client.GetBlockHash(int64(height))
			if err != nil {
				return fmt.Errorf("get block hash at height %d: %w", height, err)
			}

			block, err := client.GetBlock(hash)
			if err != nil {
				return fmt.Errorf("get block %v: %w", hash, err)
			}

			blocks[idx] = block
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}
