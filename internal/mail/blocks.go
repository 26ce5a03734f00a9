package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lalithlochan/postbox/internal/db"
)

// BlockInput describes a content block before it is stored. A link is
// present when LinkURL is set.
type BlockInput struct {
	Title     *string `json:"title,omitempty" validate:"omitempty,max=100"`
	Body      *string `json:"body,omitempty"`
	LinkLabel *string `json:"link_label,omitempty" validate:"omitempty,max=100"`
	LinkURL   *string `json:"link_url,omitempty" validate:"omitempty,url,max=200"`
}

var validate = validator.New()

// toValidationError maps the first validator failure to a ValidationError.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Field:  strings.ToLower(fe.Field()),
			Reason: fmt.Sprintf("failed %q", fe.Tag()),
		}
	}
	return err
}

// ValidateBlock checks field lengths only.
func ValidateBlock(in BlockInput) error {
	if err := validate.Struct(in); err != nil {
		return toValidationError(err)
	}
	if in.LinkLabel != nil && *in.LinkLabel != "" && (in.LinkURL == nil || *in.LinkURL == "") {
		return &ValidationError{Field: "link_url", Reason: "required when link_label is set"}
	}
	return nil
}

// NewBlock builds an unsaved ContentBlock from input.
func NewBlock(in BlockInput) *db.ContentBlock {
	return &db.ContentBlock{
		ID:        uuid.New(),
		Title:     in.Title,
		Body:      in.Body,
		HasLink:   in.LinkURL != nil && *in.LinkURL != "",
		LinkLabel: in.LinkLabel,
		LinkURL:   in.LinkURL,
	}
}

// Composer validates and stores content blocks.
type Composer struct {
	blocks BlockStore
}

func NewComposer(blocks BlockStore) *Composer {
	return &Composer{blocks: blocks}
}

// Compose stores one block.
func (c *Composer) Compose(ctx context.Context, in BlockInput) (*db.ContentBlock, error) {
	if err := ValidateBlock(in); err != nil {
		return nil, err
	}
	block := NewBlock(in)
	if err := c.blocks.CreateBlock(ctx, block); err != nil {
		return nil, fmt.Errorf("compose block: %w", err)
	}
	return block, nil
}

// ComposeAll validates every input before storing any, and returns the ids
// in input order.
func (c *Composer) ComposeAll(ctx context.Context, inputs []BlockInput) ([]uuid.UUID, error) {
	for i, in := range inputs {
		if err := ValidateBlock(in); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Field = fmt.Sprintf("blocks[%d].%s", i, verr.Field)
			}
			return nil, err
		}
	}

	ids := make([]uuid.UUID, 0, len(inputs))
	for _, in := range inputs {
		block := NewBlock(in)
		if err := c.blocks.CreateBlock(ctx, block); err != nil {
			return nil, fmt.Errorf("compose block: %w", err)
		}
		ids = append(ids, block.ID)
	}
	return ids, nil
}

func strPtr(s string) *string { return &s }
