package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// SessionRecord is the archived summary of a terminated session. Saving
// the same session again replaces the row.
type SessionRecord struct {
	ent.Schema
}

func (SessionRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			NotEmpty().
			Immutable(),
		field.Int64("sequence").
			Unique(),
		field.Enum("status").
			Values("partial", "completed"),
		field.Int("feedback_code").
			Optional().
			Comment("Unset for partial sessions"),
		field.Int("questions_count").
			NonNegative(),
		field.Ints("asked_questions"),
		field.JSON("category_weights", map[int]float64{}),
		field.Int("leading_category").
			Optional(),
		field.Int("top_theorem_id").
			Optional().
			Comment("Accepted recommendation; completed sessions only"),
		field.Time("started_at"),
		field.Time("ended_at"),
		field.Int64("duration_ms").
			NonNegative(),
	}
}
