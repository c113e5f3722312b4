// Package portabletext decodes and renders structured rich text bodies
// (portable text) as templ components.
package portabletext

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Block is one entry of a rich text body. The concrete type is one of
// *TextBlock, *ImageBlock or *UnknownBlock.
type Block interface {
	BlockType() string
}

// Span is a run of text inside a TextBlock. Marks name either a
// decorator (strong, em, code, ...) or the key of a MarkDef.
type Span struct {
	Key   string   `json:"_key,omitempty"`
	Type  string   `json:"_type"`
	Text  string   `json:"text"`
	Marks []string `json:"marks,omitempty"`
}

// MarkDef is an annotation referenced from span marks, usually a link.
type MarkDef struct {
	Key  string `json:"_key"`
	Type string `json:"_type"`
	Href string `json:"href,omitempty"`
}

// TextBlock is a paragraph, heading, quote or list item.
type TextBlock struct {
	Key      string    `json:"_key,omitempty"`
	Style    string    `json:"style,omitempty"`
	ListItem string    `json:"listItem,omitempty"`
	Level    int       `json:"level,omitempty"`
	Children []Span    `json:"children"`
	MarkDefs []MarkDef `json:"markDefs,omitempty"`
}

func (*TextBlock) BlockType() string { return "block" }

// AssetRef points at an uploaded asset in the content store.
type AssetRef struct {
	Ref string `json:"_ref"`
}

// ImageBlock is an inline image in the body.
type ImageBlock struct {
	Key     string   `json:"_key,omitempty"`
	Asset   AssetRef `json:"asset"`
	Alt     string   `json:"alt,omitempty"`
	Caption string   `json:"caption,omitempty"`
}

func (*ImageBlock) BlockType() string { return "image" }

// UnknownBlock keeps a block of a type this package does not render.
type UnknownBlock struct {
	Type string
	Raw  json.RawMessage
}

func (b *UnknownBlock) BlockType() string { return b.Type }

// Blocks is a decoded rich text body.
type Blocks []Block

// UnmarshalJSON decodes each element on its _type field. Elements of an
// unrecognized type become *UnknownBlock instead of failing the decode.
func (bs *Blocks) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*bs = nil
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("portabletext: decode body: %w", err)
	}
	out := make(Blocks, 0, len(raws))
	for i, raw := range raws {
		var head struct {
			Type string `json:"_type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return fmt.Errorf("portabletext: decode block %d: %w", i, err)
		}
		var b Block
		switch head.Type {
		case "block":
			b = new(TextBlock)
		case "image":
			b = new(ImageBlock)
		default:
			out = append(out, &UnknownBlock{Type: head.Type, Raw: append(json.RawMessage(nil), raw...)})
			continue
		}
		if err := json.Unmarshal(raw, b); err != nil {
			return fmt.Errorf("portabletext: decode %s block %d: %w", head.Type, i, err)
		}
		out = append(out, b)
	}
	*bs = out
	return nil
}

// MarshalJSON writes the body back in its wire form, _type included.
func (bs Blocks) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(bs))
	for _, b := range bs {
		var (
			raw []byte
			err error
		)
		switch v := b.(type) {
		case *TextBlock:
			raw, err = json.Marshal(struct {
				Type string `json:"_type"`
				*TextBlock
			}{"block", v})
		case *ImageBlock:
			raw, err = json.Marshal(struct {
				Type string `json:"_type"`
				*ImageBlock
			}{"image", v})
		case *UnknownBlock:
			raw = v.Raw
		default:
			err = fmt.Errorf("portabletext: cannot encode %T", b)
		}
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	return json.Marshal(raws)
}

// PlainText joins the text of all text blocks, one block per line.
// Used for summaries and feeds.
func (bs Blocks) PlainText() string {
	var buf bytes.Buffer
	for _, b := range bs {
		tb, ok := b.(*TextBlock)
		if !ok {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		for _, s := range tb.Children {
			buf.WriteString(s.Text)
		}
	}
	return buf.String()
}
