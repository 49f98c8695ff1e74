package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AnswerEvent is one submitted answer, kept whether or not the belief
// update succeeded.
type AnswerEvent struct {
	ent.Schema
}

func (AnswerEvent) Mixin() []ent.Mixin {
	return []ent.Mixin{EventMixin{}}
}

func (AnswerEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("session_id").
			NotEmpty(),
		field.Int("question_id").
			Positive(),
		field.Int("answer_id").
			Optional().
			Comment("Set for structured answers"),
		field.String("answer_text").
			Optional().
			Comment("Set for free-text answers"),
		field.String("applied").
			Optional().
			Comment("Comma-separated evidence policies that changed the weights"),
		field.String("update_error").
			Optional(),
	}
}

func (AnswerEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("session_id", "sequence"),
	}
}
