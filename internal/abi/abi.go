// Package abi is the Go reimplementation of pulsevm_core's abi.rs/
// serializer.rs: a contract's ABI document, its JSON encoding for the
// form an operator hand-edits, and its canonical binary encoding for the
// form setabi actually stores — setabi itself takes the already-packed
// bytes; this package is the upstream step that gets a human-edited ABI
// file there.
package abi

import (
	"encoding/json"

	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
)

// TypeDefinition declares a type alias ("new_type_name" stands in for
// "type" everywhere it appears in this ABI's structs/actions).
type TypeDefinition struct {
	NewTypeName string `json:"new_type_name"`
	Type        string `json:"type"`
}

func (t TypeDefinition) NumBytes() int { return 4 + len(t.NewTypeName) + 4 + len(t.Type) }

func (t TypeDefinition) MarshalCodec(e *codec.Encoder) {
	e.WriteString(t.NewTypeName)
	e.WriteString(t.Type)
}

func readTypeDefinition(d *codec.Decoder) (TypeDefinition, error) {
	var t TypeDefinition
	var err error
	if t.NewTypeName, err = d.ReadString(); err != nil {
		return t, err
	}
	t.Type, err = d.ReadString()
	return t, err
}

// FieldDefinition is one named, typed field of a struct.
type FieldDefinition struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (f FieldDefinition) MarshalCodec(e *codec.Encoder) {
	e.WriteString(f.Name)
	e.WriteString(f.Type)
}

func readFieldDefinition(d *codec.Decoder) (FieldDefinition, error) {
	var f FieldDefinition
	var err error
	if f.Name, err = d.ReadString(); err != nil {
		return f, err
	}
	f.Type, err = d.ReadString()
	return f, err
}

// StructDefinition is a named record, optionally extending a base
// struct, with an ordered field list.
type StructDefinition struct {
	Name   string            `json:"name"`
	Base   string            `json:"base"`
	Fields []FieldDefinition `json:"fields"`
}

func (s StructDefinition) MarshalCodec(e *codec.Encoder) {
	e.WriteString(s.Name)
	e.WriteString(s.Base)
	e.WriteVarUint32(uint32(len(s.Fields)))
	for _, f := range s.Fields {
		f.MarshalCodec(e)
	}
}

func readStructDefinition(d *codec.Decoder) (StructDefinition, error) {
	var s StructDefinition
	var err error
	if s.Name, err = d.ReadString(); err != nil {
		return s, err
	}
	if s.Base, err = d.ReadString(); err != nil {
		return s, err
	}
	n, err := d.ReadVarUint32()
	if err != nil {
		return s, err
	}
	s.Fields = make([]FieldDefinition, n)
	for i := range s.Fields {
		if s.Fields[i], err = readFieldDefinition(d); err != nil {
			return s, err
		}
	}
	return s, nil
}

// ActionDefinition names one action a contract accepts and the struct
// type its data field unpacks to.
type ActionDefinition struct {
	Name              name.Name `json:"name"`
	Type              string    `json:"type"`
	RicardianContract string    `json:"ricardian_contract"`
}

func (a ActionDefinition) MarshalCodec(e *codec.Encoder) {
	a.Name.MarshalCodec(e)
	e.WriteString(a.Type)
	e.WriteString(a.RicardianContract)
}

func readActionDefinition(d *codec.Decoder) (ActionDefinition, error) {
	var a ActionDefinition
	var err error
	if a.Name, err = name.ReadName(d); err != nil {
		return a, err
	}
	if a.Type, err = d.ReadString(); err != nil {
		return a, err
	}
	a.RicardianContract, err = d.ReadString()
	return a, err
}

// TableDefinition names one multi-index table a contract exposes
// through the db_*_i64 intrinsics, and the struct type its rows unpack
// to.
type TableDefinition struct {
	Name      name.Name `json:"name"`
	IndexType string    `json:"index_type"`
	KeyNames  []string  `json:"key_names"`
	KeyTypes  []string  `json:"key_types"`
	Type      string    `json:"type"`
}

func (t TableDefinition) MarshalCodec(e *codec.Encoder) {
	t.Name.MarshalCodec(e)
	e.WriteString(t.IndexType)
	e.WriteVarUint32(uint32(len(t.KeyNames)))
	for _, k := range t.KeyNames {
		e.WriteString(k)
	}
	e.WriteVarUint32(uint32(len(t.KeyTypes)))
	for _, k := range t.KeyTypes {
		e.WriteString(k)
	}
	e.WriteString(t.Type)
}

func readTableDefinition(d *codec.Decoder) (TableDefinition, error) {
	var t TableDefinition
	var err error
	if t.Name, err = name.ReadName(d); err != nil {
		return t, err
	}
	if t.IndexType, err = d.ReadString(); err != nil {
		return t, err
	}
	if t.KeyNames, err = readStrings(d); err != nil {
		return t, err
	}
	if t.KeyTypes, err = readStrings(d); err != nil {
		return t, err
	}
	t.Type, err = d.ReadString()
	return t, err
}

func readStrings(d *codec.Decoder) ([]string, error) {
	n, err := d.ReadVarUint32()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = d.ReadString(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ClausePair is one ricardian clause, referenced by id from an action's
// contract text.
type ClausePair struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func (c ClausePair) MarshalCodec(e *codec.Encoder) {
	e.WriteString(c.ID)
	e.WriteString(c.Body)
}

func readClausePair(d *codec.Decoder) (ClausePair, error) {
	var c ClausePair
	var err error
	if c.ID, err = d.ReadString(); err != nil {
		return c, err
	}
	c.Body, err = d.ReadString()
	return c, err
}

// ErrorMessage maps a contract-raised error code to operator-facing text.
type ErrorMessage struct {
	ErrorCode uint64 `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

func (m ErrorMessage) MarshalCodec(e *codec.Encoder) {
	e.WriteUint64(m.ErrorCode)
	e.WriteString(m.ErrorMsg)
}

func readErrorMessage(d *codec.Decoder) (ErrorMessage, error) {
	var m ErrorMessage
	var err error
	if m.ErrorCode, err = d.ReadUint64(); err != nil {
		return m, err
	}
	m.ErrorMsg, err = d.ReadString()
	return m, err
}

// VariantDefinition names a tagged union over a list of member types.
type VariantDefinition struct {
	Name  string   `json:"name"`
	Types []string `json:"types"`
}

func (v VariantDefinition) MarshalCodec(e *codec.Encoder) {
	e.WriteString(v.Name)
	e.WriteVarUint32(uint32(len(v.Types)))
	for _, t := range v.Types {
		e.WriteString(t)
	}
}

func readVariantDefinition(d *codec.Decoder) (VariantDefinition, error) {
	var v VariantDefinition
	var err error
	if v.Name, err = d.ReadString(); err != nil {
		return v, err
	}
	v.Types, err = readStrings(d)
	return v, err
}

// ActionResultDefinition names the return type of an action that calls
// set_action_return_value.
type ActionResultDefinition struct {
	Name       name.Name `json:"name"`
	ResultType string    `json:"result_type"`
}

func (r ActionResultDefinition) MarshalCodec(e *codec.Encoder) {
	r.Name.MarshalCodec(e)
	e.WriteString(r.ResultType)
}

func readActionResultDefinition(d *codec.Decoder) (ActionResultDefinition, error) {
	var r ActionResultDefinition
	var err error
	if r.Name, err = name.ReadName(d); err != nil {
		return r, err
	}
	r.ResultType, err = d.ReadString()
	return r, err
}

// Definition is a contract's full ABI: the types, structs, actions, and
// tables a deployed contract's code exposes. abi_extensions from the
// original (always an empty vector in every ABI this chain has ever
// produced) is dropped, the same way block header extensions are
// (internal/transaction's BlockHeader always writes an empty extensions
// sequence rather than carrying an unused field).
type Definition struct {
	Version          string                   `json:"version"`
	Types            []TypeDefinition         `json:"types"`
	Structs          []StructDefinition       `json:"structs"`
	Actions          []ActionDefinition       `json:"actions"`
	Tables           []TableDefinition        `json:"tables"`
	RicardianClauses []ClausePair             `json:"ricardian_clauses"`
	ErrorMessages    []ErrorMessage           `json:"error_messages"`
	Variants         []VariantDefinition      `json:"variants"`
	ActionResults    []ActionResultDefinition `json:"action_results"`
}

// GetTableType returns the struct type backing table, for the apply
// context to resolve a db_store_i64 call's row type against.
func (def Definition) GetTableType(table name.Name) (string, bool) {
	for _, t := range def.Tables {
		if t.Name == table {
			return t.Type, true
		}
	}
	return "", false
}

func (def Definition) MarshalCodec(e *codec.Encoder) {
	e.WriteString(def.Version)
	e.WriteVarUint32(uint32(len(def.Types)))
	for _, t := range def.Types {
		t.MarshalCodec(e)
	}
	e.WriteVarUint32(uint32(len(def.Structs)))
	for _, s := range def.Structs {
		s.MarshalCodec(e)
	}
	e.WriteVarUint32(uint32(len(def.Actions)))
	for _, a := range def.Actions {
		a.MarshalCodec(e)
	}
	e.WriteVarUint32(uint32(len(def.Tables)))
	for _, t := range def.Tables {
		t.MarshalCodec(e)
	}
	e.WriteVarUint32(uint32(len(def.RicardianClauses)))
	for _, c := range def.RicardianClauses {
		c.MarshalCodec(e)
	}
	e.WriteVarUint32(uint32(len(def.ErrorMessages)))
	for _, m := range def.ErrorMessages {
		m.MarshalCodec(e)
	}
	e.WriteVarUint32(uint32(len(def.Variants)))
	for _, v := range def.Variants {
		v.MarshalCodec(e)
	}
	e.WriteVarUint32(uint32(len(def.ActionResults)))
	for _, r := range def.ActionResults {
		r.MarshalCodec(e)
	}
}

// ReadDefinition decodes a Definition from its canonical binary form.
func ReadDefinition(d *codec.Decoder) (Definition, error) {
	var def Definition
	var err error
	if def.Version, err = d.ReadString(); err != nil {
		return def, err
	}

	typeCount, err := d.ReadVarUint32()
	if err != nil {
		return def, err
	}
	def.Types = make([]TypeDefinition, typeCount)
	for i := range def.Types {
		if def.Types[i], err = readTypeDefinition(d); err != nil {
			return def, err
		}
	}

	structCount, err := d.ReadVarUint32()
	if err != nil {
		return def, err
	}
	def.Structs = make([]StructDefinition, structCount)
	for i := range def.Structs {
		if def.Structs[i], err = readStructDefinition(d); err != nil {
			return def, err
		}
	}

	actionCount, err := d.ReadVarUint32()
	if err != nil {
		return def, err
	}
	def.Actions = make([]ActionDefinition, actionCount)
	for i := range def.Actions {
		if def.Actions[i], err = readActionDefinition(d); err != nil {
			return def, err
		}
	}

	tableCount, err := d.ReadVarUint32()
	if err != nil {
		return def, err
	}
	def.Tables = make([]TableDefinition, tableCount)
	for i := range def.Tables {
		if def.Tables[i], err = readTableDefinition(d); err != nil {
			return def, err
		}
	}

	clauseCount, err := d.ReadVarUint32()
	if err != nil {
		return def, err
	}
	def.RicardianClauses = make([]ClausePair, clauseCount)
	for i := range def.RicardianClauses {
		if def.RicardianClauses[i], err = readClausePair(d); err != nil {
			return def, err
		}
	}

	errCount, err := d.ReadVarUint32()
	if err != nil {
		return def, err
	}
	def.ErrorMessages = make([]ErrorMessage, errCount)
	for i := range def.ErrorMessages {
		if def.ErrorMessages[i], err = readErrorMessage(d); err != nil {
			return def, err
		}
	}

	variantCount, err := d.ReadVarUint32()
	if err != nil {
		return def, err
	}
	def.Variants = make([]VariantDefinition, variantCount)
	for i := range def.Variants {
		if def.Variants[i], err = readVariantDefinition(d); err != nil {
			return def, err
		}
	}

	resultCount, err := d.ReadVarUint32()
	if err != nil {
		return def, err
	}
	def.ActionResults = make([]ActionResultDefinition, resultCount)
	for i := range def.ActionResults {
		if def.ActionResults[i], err = readActionResultDefinition(d); err != nil {
			return def, err
		}
	}

	return def, nil
}

// PackJSON decodes a human-edited JSON ABI document and re-packs it to
// its canonical binary form, the step setabi needs before calling
// nativeactions.Manager.SetABI.
func PackJSON(raw []byte) ([]byte, error) {
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, err
	}
	e := codec.NewEncoder(len(raw))
	def.MarshalCodec(e)
	return e.Bytes(), nil
}

// Unpack decodes a canonical binary ABI back to its JSON form, for
// operator inspection (e.g. a future "inspect-abi" CLI command).
func Unpack(packed []byte) (Definition, error) {
	return ReadDefinition(codec.NewDecoder(packed))
}

// MarshalJSON re-encodes def back to its JSON document form.
func (def Definition) MarshalJSON() ([]byte, error) {
	type alias Definition
	return json.Marshal(alias(def))
}
