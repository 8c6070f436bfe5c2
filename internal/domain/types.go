package domain

import "time"

type SessionID string
type ParticipantID string

type Category string

const (
	CategoryWord    Category = "word"
	CategoryNonWord Category = "non_word"
)

type BlockType string

const (
	BlockBW        BlockType = "bw"         // black text on white
	BlockColor     BlockType = "color"      // coloured text on white
	BlockColoredBG BlockType = "colored_bg" // coloured text on a coloured background
)

// Blocks lists the block types in presentation order.
var Blocks = []BlockType{BlockBW, BlockColor, BlockColoredBG}

// ParseBlockType maps any unknown value to BlockBW.
func ParseBlockType(s string) BlockType {
	switch BlockType(s) {
	case BlockColor:
		return BlockColor
	case BlockColoredBG:
		return BlockColoredBG
	default:
		return BlockBW
	}
}

// UsesColorWords reports whether trials in this block draw colour-associated distractors.
func (b BlockType) UsesColorWords() bool {
	return b == BlockColor || b == BlockColoredBG
}

// Index returns the position of the block in Blocks, or 0.
func (b BlockType) Index() int {
	for i, bt := range Blocks {
		if bt == b {
			return i
		}
	}
	return 0
}

type Timestamp = time.Time
