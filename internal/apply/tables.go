package apply

import (
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/store"
)

// billableSizeKeyValue approximates the per-row object-header overhead
// billed in addition to payload length, matching the other billable-
// size constants in internal/nativeactions (config.rs was not present
// in the retrieved original_source pack).
const billableSizeKeyValue = 112

// TableMeta is one (code, scope, table) triple a contract has created,
// tracking its row count so empty tables can be pruned automatically.
type TableMeta struct {
	ID    uint64
	Code  name.Name
	Scope name.Name
	Table name.Name
	Payer name.Name
	Count uint32
}

func tableComposite(code, scope, table name.Name) []byte {
	b := make([]byte, 0, 24)
	b = append(b, store.BEUint64(code.Uint64())...)
	b = append(b, store.BEUint64(scope.Uint64())...)
	b = append(b, store.BEUint64(table.Uint64())...)
	return b
}

func (t TableMeta) NumBytes() int { return 8 + 8*4 + 4 }

func (t TableMeta) MarshalCodec(e *codec.Encoder) {
	e.WriteUint64(t.ID)
	t.Code.MarshalCodec(e)
	t.Scope.MarshalCodec(e)
	t.Table.MarshalCodec(e)
	t.Payer.MarshalCodec(e)
	e.WriteUint32(t.Count)
}

func ReadTableMeta(d *codec.Decoder) (TableMeta, error) {
	var t TableMeta
	var err error
	if t.ID, err = d.ReadUint64(); err != nil {
		return t, err
	}
	if t.Code, err = name.ReadName(d); err != nil {
		return t, err
	}
	if t.Scope, err = name.ReadName(d); err != nil {
		return t, err
	}
	if t.Table, err = name.ReadName(d); err != nil {
		return t, err
	}
	if t.Payer, err = name.ReadName(d); err != nil {
		return t, err
	}
	if t.Count, err = d.ReadUint32(); err != nil {
		return t, err
	}
	return t, nil
}

// KeyValue is one row of a contract's scoped table: a 64-bit primary
// key plus an opaque, contract-defined payload.
type KeyValue struct {
	ID         uint64
	TableID    uint64
	PrimaryKey uint64
	Payer      name.Name
	Value      []byte
}

func scopePrimaryComposite(tableID, primaryKey uint64) []byte {
	b := make([]byte, 0, 16)
	b = append(b, store.BEUint64(tableID)...)
	b = append(b, store.BEUint64(primaryKey)...)
	return b
}

func (kv KeyValue) NumBytes() int { return 8 + 8 + 8 + 8 + 4 + len(kv.Value) }

func (kv KeyValue) MarshalCodec(e *codec.Encoder) {
	e.WriteUint64(kv.ID)
	e.WriteUint64(kv.TableID)
	e.WriteUint64(kv.PrimaryKey)
	kv.Payer.MarshalCodec(e)
	e.WriteBytes(kv.Value)
}

func ReadKeyValue(d *codec.Decoder) (KeyValue, error) {
	var kv KeyValue
	var err error
	if kv.ID, err = d.ReadUint64(); err != nil {
		return kv, err
	}
	if kv.TableID, err = d.ReadUint64(); err != nil {
		return kv, err
	}
	if kv.PrimaryKey, err = d.ReadUint64(); err != nil {
		return kv, err
	}
	if kv.Payer, err = name.ReadName(d); err != nil {
		return kv, err
	}
	if kv.Value, err = d.ReadBytes(); err != nil {
		return kv, err
	}
	return kv, nil
}

const (
	partitionTableMeta = "contract_table"
	partitionKeyValue  = "contract_row"
)

func newTableMetaTable(sess *store.Session) *store.Table[TableMeta] {
	return store.NewTable[TableMeta](sess, partitionTableMeta,
		func(t TableMeta) uint64 { return t.ID },
		ReadTableMeta,
		[]store.IndexSpec[TableMeta]{
			{Name: "by_code_scope_table", Unique: true, Composite: func(t TableMeta) []byte {
				return tableComposite(t.Code, t.Scope, t.Table)
			}},
		})
}

func newKeyValueTable(sess *store.Session) *store.Table[KeyValue] {
	return store.NewTable[KeyValue](sess, partitionKeyValue,
		func(kv KeyValue) uint64 { return kv.ID },
		ReadKeyValue,
		[]store.IndexSpec[KeyValue]{
			{Name: "by_scope_primary", Unique: true, Composite: func(kv KeyValue) []byte {
				return scopePrimaryComposite(kv.TableID, kv.PrimaryKey)
			}},
		})
}
