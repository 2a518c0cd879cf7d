package canvas

// Patch op kinds. Unknown ops are ignored by Apply and passed through
// untouched by Compact.
const (
	OpUpsertBlock   = "upsert_block"
	OpDeleteBlock   = "delete_block"
	OpSetViewport   = "set_viewport"
	OpReplaceBlocks = "replace_blocks"
	OpSetCanvas     = "set_canvas"
)

// Patch is one typed mutation intent against a canvas. Exactly one of the
// payload fields is meaningful for a given Op.
type Patch struct {
	Op       string    `json:"op"`
	Block    *Block    `json:"block,omitempty"`
	BlockID  string    `json:"blockId,omitempty"`
	Viewport *Viewport `json:"viewport,omitempty"`
	Blocks   []Block   `json:"blocks,omitempty"`
	Canvas   *Canvas   `json:"canvas,omitempty"`
}

// Apply replays patches left to right over the canvas and returns the new
// state. Later patches for the same block supersede earlier ones. After all
// patches apply, blocks are renormalized and areas are recomputed
// unconditionally; areas are never patched directly.
func Apply(c Canvas, patches []Patch) Canvas {
	now := nowFn()
	viewport := NormalizeViewport(c.Viewport)
	blocks := NormalizeBlocks(c.Blocks, now)

	for _, p := range patches {
		switch p.Op {
		case OpUpsertBlock:
			if p.Block == nil {
				continue
			}
			incoming := *p.Block
			incoming.UpdatedAt = now
			incoming = NormalizeBlock(incoming, now)
			replaced := false
			for i := range blocks {
				if blocks[i].ID == incoming.ID {
					blocks[i] = incoming
					replaced = true
					break
				}
			}
			if !replaced {
				blocks = append(blocks, incoming)
			}

		case OpDeleteBlock:
			kept := blocks[:0]
			for _, b := range blocks {
				if b.ID != p.BlockID {
					kept = append(kept, b)
				}
			}
			blocks = kept

		case OpSetViewport:
			if p.Viewport != nil {
				viewport = NormalizeViewport(*p.Viewport)
			}

		case OpReplaceBlocks:
			blocks = NormalizeBlocks(p.Blocks, now)

		case OpSetCanvas:
			if p.Canvas != nil {
				viewport = NormalizeViewport(p.Canvas.Viewport)
				blocks = NormalizeBlocks(p.Canvas.Blocks, now)
			}
		}
	}

	blocks, areas := ComputeAreas(blocks)
	return Canvas{Viewport: viewport, Blocks: blocks, Areas: areas}
}

// Compact collapses an outgoing patch batch before it is sent for replay:
// multiple upserts to one block keep only the last, an upsert followed by a
// delete keeps only the delete, a delete followed by an upsert keeps only the
// upsert, and at most one viewport patch survives (the last). The compacted
// order is: ops the compactor does not recognize, then deletes, then upserts,
// then the viewport patch, so deletes can never resurrect a re-added block
// and the final viewport reflects the latest intent.
func Compact(patches []Patch) []Patch {
	var passthrough []Patch
	upserts := make(map[string]Patch)
	var upsertOrder []string
	deleted := make(map[string]bool)
	var deleteOrder []string
	var viewport *Patch

	removeID := func(ids []string, id string) []string {
		kept := ids[:0]
		for _, v := range ids {
			if v != id {
				kept = append(kept, v)
			}
		}
		return kept
	}

	for _, p := range patches {
		switch p.Op {
		case OpUpsertBlock:
			if p.Block == nil {
				continue
			}
			id := p.Block.ID
			if deleted[id] {
				delete(deleted, id)
				deleteOrder = removeID(deleteOrder, id)
			}
			if _, seen := upserts[id]; !seen {
				upsertOrder = append(upsertOrder, id)
			}
			upserts[id] = p

		case OpDeleteBlock:
			id := p.BlockID
			if _, seen := upserts[id]; seen {
				delete(upserts, id)
				upsertOrder = removeID(upsertOrder, id)
			}
			if !deleted[id] {
				deleted[id] = true
				deleteOrder = append(deleteOrder, id)
			}

		case OpSetViewport:
			vp := p
			viewport = &vp

		default:
			passthrough = append(passthrough, p)
		}
	}

	out := make([]Patch, 0, len(passthrough)+len(deleteOrder)+len(upsertOrder)+1)
	out = append(out, passthrough...)
	for _, id := range deleteOrder {
		out = append(out, Patch{Op: OpDeleteBlock, BlockID: id})
	}
	for _, id := range upsertOrder {
		out = append(out, upserts[id])
	}
	if viewport != nil {
		out = append(out, *viewport)
	}
	return out
}
