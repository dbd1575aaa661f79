package models

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// FieldName identifies a data point on a queue item.
type FieldName string

// Kind is the semantic type a Value carries.
type Kind string

const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindList     Kind = "list"
	KindDate     Kind = "date"
	KindSentinel Kind = "sentinel" // retrieval failed, sorts to the end
)

// Value is a tagged union of the value shapes a field can hold.
type Value struct {
	Kind Kind      `json:"kind" bson:"kind"`
	Text string    `json:"text,omitempty" bson:"text,omitempty"`
	Num  float64   `json:"num,omitempty" bson:"num,omitempty"`
	List []string  `json:"list,omitempty" bson:"list,omitempty"`
	Date time.Time `json:"date,omitempty" bson:"date,omitempty"`
}

func Text(s string) Value        { return Value{Kind: KindText, Text: s} }
func Number(f float64) Value     { return Value{Kind: KindNumber, Num: f} }
func List(items ...string) Value { return Value{Kind: KindList, List: items} }
func Date(t time.Time) Value     { return Value{Kind: KindDate, Date: t} }
func Sentinel() Value            { return Value{Kind: KindSentinel} }

func (v Value) IsSentinel() bool { return v.Kind == KindSentinel }

// Float returns the numeric view of v. Text values are parsed leniently.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case KindDate:
		return float64(v.Date.Unix()), true
	}
	return 0, false
}

// Strings returns the tokens v can be matched on.
func (v Value) Strings() []string {
	switch v.Kind {
	case KindText:
		return []string{v.Text}
	case KindList:
		return v.List
	case KindNumber:
		return []string{strconv.FormatFloat(v.Num, 'f', -1, 64)}
	case KindDate:
		return []string{v.Date.Format("1/2/2006")}
	}
	return nil
}

// String renders v for lexical comparison and logs.
func (v Value) String() string {
	return strings.Join(v.Strings(), ", ")
}

func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindText:
		return v.Text == o.Text
	case KindNumber:
		return v.Num == o.Num
	case KindList:
		return slices.Equal(v.List, o.List)
	case KindDate:
		return v.Date.Equal(o.Date)
	}
	return true
}

type Fields map[FieldName]Value

// Item is one queue entry being sorted.
type Item struct {
	ID               string `json:"id"`
	GroupID          string `json:"group_id,omitempty"`
	OriginalPosition int    `json:"original_position"`
	TargetPosition   int    `json:"target_position,omitempty"`
	Fields           Fields `json:"fields,omitempty"`
}

func (it *Item) Get(name FieldName) (Value, bool) {
	v, ok := it.Fields[name]
	return v, ok
}

func (it *Item) Set(name FieldName, v Value) {
	if it.Fields == nil {
		it.Fields = make(Fields)
	}
	it.Fields[name] = v
}

func (it *Item) Has(name FieldName) bool {
	_, ok := it.Fields[name]
	return ok
}

func (it *Item) HasAll(names []FieldName) bool {
	for _, n := range names {
		if !it.Has(n) {
			return false
		}
	}
	return true
}

// Missing returns the subset of names the item does not hold, in order.
func (it *Item) Missing(names []FieldName) []FieldName {
	var out []FieldName
	for _, n := range names {
		if !it.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

func (it *Item) Clone() *Item {
	c := *it
	c.Fields = make(Fields, len(it.Fields))
	for k, v := range it.Fields {
		c.Fields[k] = v
	}
	return &c
}
