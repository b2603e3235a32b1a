package controller

import (
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/genesis"
	"github.com/pulsevm/pulsevm/internal/store"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

const partitionGlobalProperty = "global_property"

// GlobalProperty is the controller's singleton row: the chain's
// identity and the resource configuration it was booted with.
type GlobalProperty struct {
	ChainID       xcrypto.Id
	Configuration genesis.ChainConfig
}

func (g GlobalProperty) NumBytes() int { return 32 + g.Configuration.NumBytes() }

func (g GlobalProperty) MarshalCodec(e *codec.Encoder) {
	e.WriteRawBytes(g.ChainID[:])
	g.Configuration.MarshalCodec(e)
}

func readGlobalProperty(d *codec.Decoder) (GlobalProperty, error) {
	var g GlobalProperty
	raw, err := d.ReadRawBytes(32)
	if err != nil {
		return g, err
	}
	copy(g.ChainID[:], raw)
	g.Configuration, err = genesis.ReadChainConfig(d)
	return g, err
}

func newGlobalPropertyTable(sess *store.Session) *store.Table[GlobalProperty] {
	return store.NewTable[GlobalProperty](sess, partitionGlobalProperty, func(GlobalProperty) uint64 { return 0 }, readGlobalProperty, nil)
}
