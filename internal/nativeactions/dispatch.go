package nativeactions

import (
	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
)

var (
	newaccountName = name.MustParse("newaccount")
	setcodeName    = name.MustParse("setcode")
	setabiName     = name.MustParse("setabi")
	updateauthName = name.MustParse("updateauth")
	deleteauthName = name.MustParse("deleteauth")
	linkauthName   = name.MustParse("linkauth")
	unlinkauthName = name.MustParse("unlinkauth")
	pulseName      = name.MustParse("pulse")
)

func readNewAccountParams(d *codec.Decoder) (NewAccountParams, error) {
	var p NewAccountParams
	var err error
	if p.Creator, err = name.ReadName(d); err != nil {
		return p, err
	}
	if p.Name, err = name.ReadName(d); err != nil {
		return p, err
	}
	if p.Owner, err = authority.ReadAuthority(d); err != nil {
		return p, err
	}
	if p.Active, err = authority.ReadAuthority(d); err != nil {
		return p, err
	}
	return p, nil
}

func readSetCodeParams(d *codec.Decoder) (SetCodeParams, error) {
	var p SetCodeParams
	var err error
	var acct name.Name
	if acct, err = name.ReadName(d); err != nil {
		return p, err
	}
	p.Account = acct
	if p.VMType, err = d.ReadByte(); err != nil {
		return p, err
	}
	if p.VMVersion, err = d.ReadByte(); err != nil {
		return p, err
	}
	if p.Code, err = d.ReadBytes(); err != nil {
		return p, err
	}
	return p, nil
}

func readSetABIParams(d *codec.Decoder) (name.Name, []byte, error) {
	account, err := name.ReadName(d)
	if err != nil {
		return account, nil, err
	}
	abi, err := d.ReadBytes()
	return account, abi, err
}

func readUpdateAuthParams(d *codec.Decoder) (UpdateAuthParams, error) {
	var p UpdateAuthParams
	var err error
	if p.Account, err = name.ReadName(d); err != nil {
		return p, err
	}
	if p.Permission, err = name.ReadName(d); err != nil {
		return p, err
	}
	if p.Parent, err = name.ReadName(d); err != nil {
		return p, err
	}
	if p.Auth, err = authority.ReadAuthority(d); err != nil {
		return p, err
	}
	return p, nil
}

func readDeleteAuthParams(d *codec.Decoder) (account, permission name.Name, err error) {
	if account, err = name.ReadName(d); err != nil {
		return
	}
	permission, err = name.ReadName(d)
	return
}

func readLinkAuthParams(d *codec.Decoder) (account, code, messageType, requirement name.Name, err error) {
	if account, err = name.ReadName(d); err != nil {
		return
	}
	if code, err = name.ReadName(d); err != nil {
		return
	}
	if messageType, err = name.ReadName(d); err != nil {
		return
	}
	requirement, err = name.ReadName(d)
	return
}

func readUnlinkAuthParams(d *codec.Decoder) (account, code, messageType name.Name, err error) {
	if account, err = name.ReadName(d); err != nil {
		return
	}
	if code, err = name.ReadName(d); err != nil {
		return
	}
	messageType, err = name.ReadName(d)
	return
}

// Dispatch runs the native handler for actionName if (receiver, code,
// actionName) names one of the seven built-in pulse-contract actions,
// reporting ok=false when no native handler matches so the caller falls
// through to WASM execution. Native actions always run on the pulse
// account, never virtualized.
func (m *Manager) Dispatch(receiver, code, actionName name.Name, data []byte, blockSlot uint32) (ok bool, err error) {
	if receiver != pulseName || code != pulseName {
		return false, nil
	}
	d := codec.NewDecoder(data)
	switch actionName {
	case newaccountName:
		p, err := readNewAccountParams(d)
		if err != nil {
			return true, chainerr.Wrap(chainerr.Parse, err, "failed to decode newaccount")
		}
		return true, m.NewAccount(p, blockSlot)
	case setcodeName:
		p, err := readSetCodeParams(d)
		if err != nil {
			return true, chainerr.Wrap(chainerr.Parse, err, "failed to decode setcode")
		}
		return true, m.SetCode(p, blockSlot)
	case setabiName:
		account, abi, err := readSetABIParams(d)
		if err != nil {
			return true, chainerr.Wrap(chainerr.Parse, err, "failed to decode setabi")
		}
		return true, m.SetABI(account, abi)
	case updateauthName:
		p, err := readUpdateAuthParams(d)
		if err != nil {
			return true, chainerr.Wrap(chainerr.Parse, err, "failed to decode updateauth")
		}
		return true, m.UpdateAuth(p, blockSlot)
	case deleteauthName:
		account, permission, err := readDeleteAuthParams(d)
		if err != nil {
			return true, chainerr.Wrap(chainerr.Parse, err, "failed to decode deleteauth")
		}
		return true, m.DeleteAuth(account, permission)
	case linkauthName:
		account, code, messageType, requirement, err := readLinkAuthParams(d)
		if err != nil {
			return true, chainerr.Wrap(chainerr.Parse, err, "failed to decode linkauth")
		}
		return true, m.LinkAuth(account, code, messageType, requirement)
	case unlinkauthName:
		account, code, messageType, err := readUnlinkAuthParams(d)
		if err != nil {
			return true, chainerr.Wrap(chainerr.Parse, err, "failed to decode unlinkauth")
		}
		return true, m.UnlinkAuth(account, code, messageType)
	default:
		return false, nil
	}
}
