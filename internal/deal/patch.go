package deal

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/burlingtondeals/dealsapi/internal/model"
	"github.com/burlingtondeals/dealsapi/internal/repository"
)

// fieldDecoder はJSON値を検証してカラムに書き込む値に変換する。
type fieldDecoder func(raw json.RawMessage) (any, error)

// updatableFields は部分更新で受け付けるフィールドと、書き込み先カラムの対応表。
// 順序はUPDATE文のSET句の順序になる。
var updatableFields = []struct {
	name   string
	column string
	decode fieldDecoder
}{
	{"title", "title", requiredText("title")},
	{"description", "description", requiredText("description")},
	{"price", "price", decimalField("price", false)},
	{"day_of_week", "day_of_week", weekdayField},
	{"category", "category", requiredText("category")},
	{"second_category", "second_category", nullableText},
	{"start_time", "start_time", timeOfDayField("start_time")},
	{"end_time", "end_time", timeOfDayField("end_time")},
	{"is_promoted", "is_promoted", boolField("is_promoted")},
	{"promoted_until", "promoted_until", promotedUntilField},
	{"is_approved", "is_approved", boolField("is_approved")},
	{"price_per_wing", "price_per_wing", decimalField("price_per_wing", true)},
	{"deal_type", "deal_type", dealTypeField},
	{"percentage_discount", "percentage_discount", decimalField("percentage_discount", true)},
	{"promotion_tier", "promotion_tier", tierField},
}

// Patch は検証済みの部分更新。キーはカラム名。
type Patch struct {
	values map[string]any
}

// Has はカラムが更新対象に含まれるかを返す。
func (p *Patch) Has(column string) bool {
	_, ok := p.values[column]
	return ok
}

func (p *Patch) set(column string, v any) {
	p.values[column] = v
}

// Assignments は対応表の順序でリポジトリ向けの更新項目を返す。
// 価格モードの調整で追加される flat_price は末尾に置く。
func (p *Patch) Assignments() []repository.DealAssignment {
	out := make([]repository.DealAssignment, 0, len(p.values))
	for _, f := range updatableFields {
		if v, ok := p.values[f.column]; ok {
			out = append(out, repository.DealAssignment{Column: f.column, Value: v})
		}
	}
	if v, ok := p.values["flat_price"]; ok {
		out = append(out, repository.DealAssignment{Column: "flat_price", Value: v})
	}
	return out
}

// ParseUpdate はリクエストボディを検証してPatchを返す。
// 対応表にないキーが1つでもあれば何も適用せずにエラーを返す。
func ParseUpdate(body map[string]json.RawMessage) (*Patch, error) {
	if len(body) == 0 {
		return nil, model.NewValidationError("No fields to update.")
	}

	known := make(map[string]bool, len(updatableFields))
	for _, f := range updatableFields {
		known[f.name] = true
	}
	var invalid []string
	for name := range body {
		if !known[name] {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, model.NewValidationError("Invalid fields: " + strings.Join(invalid, ", "))
	}

	p := &Patch{values: make(map[string]any, len(body))}
	for _, f := range updatableFields {
		raw, ok := body[f.name]
		if !ok {
			continue
		}
		v, err := f.decode(raw)
		if err != nil {
			return nil, err
		}
		p.set(f.column, v)
	}
	return p, nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func invalidValue(field string) error {
	return model.NewValidationError("Invalid value for " + field + ".")
}

func requiredText(field string) fieldDecoder {
	return func(raw json.RawMessage) (any, error) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return nil, invalidValue(field)
		}
		return strings.TrimSpace(s), nil
	}
}

func nullableText(raw json.RawMessage) (any, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, invalidValue("second_category")
	}
	if v := optionalString(s); v != nil {
		return *v, nil
	}
	return nil, nil
}

func weekdayField(raw json.RawMessage) (any, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, invalidValue("day_of_week")
	}
	day, ok := model.NormalizeWeekday(s)
	if !ok {
		return nil, model.NewValidationError("Invalid day_of_week.")
	}
	return day, nil
}

func timeOfDayField(field string) fieldDecoder {
	return func(raw json.RawMessage) (any, error) {
		if isNull(raw) {
			return nil, nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, invalidValue(field)
		}
		t, err := parseTimeOfDay(field, s)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, nil
		}
		return *t, nil
	}
}

func boolField(field string) fieldDecoder {
	return func(raw json.RawMessage) (any, error) {
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, invalidValue(field)
		}
		return b, nil
	}
}

func promotedUntilField(raw json.RawMessage) (any, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, model.NewValidationError("Invalid promoted_until date.")
	}
	t, ok := parsePromotedUntil(s)
	if !ok {
		return nil, model.NewValidationError("Invalid promoted_until date.")
	}
	return t, nil
}

func decimalField(field string, nullable bool) fieldDecoder {
	return func(raw json.RawMessage) (any, error) {
		if isNull(raw) {
			if nullable {
				return nil, nil
			}
			return nil, invalidValue(field)
		}
		var d Decimal
		if err := json.Unmarshal(raw, &d); err != nil || !d.OK || d.Value < 0 {
			if field == "percentage_discount" {
				return nil, model.NewValidationError("Invalid percentage_discount. Must be between 0 and 100.")
			}
			return nil, invalidValue(field)
		}
		return d.Value, nil
	}
}

func dealTypeField(raw json.RawMessage) (any, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || !model.DealType(s).Valid() {
		return nil, model.NewValidationError(invalidDealTypeMessage)
	}
	return model.DealType(s), nil
}

func tierField(raw json.RawMessage) (any, error) {
	tier, ok := parseTier(raw)
	if !ok {
		return nil, model.NewValidationError("Invalid promotion_tier, must be a number.")
	}
	return tier, nil
}

// floatValue はPatchの値を *float64 として取り出す。
func floatValue(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}
