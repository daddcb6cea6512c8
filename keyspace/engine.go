// Package keyspace executes parsed RESP commands against a hashdict,
// formatting RESP replies.
package keyspace

import (
	"strconv"

	"github.com/rpcpool/kvcore/hashdict"
	"github.com/rpcpool/kvcore/metrics"
	"github.com/rpcpool/kvcore/resp"
	"github.com/rpcpool/kvcore/value"
)

type handler func(d *hashdict.Dict, args [][]byte) ([]byte, error)

type commandSpec struct {
	name string
	min  int
	max  int // -1 means unbounded
	fn   handler
}

// commandTable is keyed by the uppercased first three ASCII letters of the
// command name, per the matching rule the executor uses.
var commandTable = map[string]commandSpec{
	"SET": {name: "SET", min: 2, max: 2, fn: cmdSet},
	"GET": {name: "GET", min: 1, max: 1, fn: cmdGet},
	"DEL": {name: "DEL", min: 1, max: -1, fn: cmdDel},
	"LPU": {name: "LPUSH", min: 2, max: 2, fn: cmdLpush},
	"RPU": {name: "RPUSH", min: 2, max: 2, fn: cmdRpush},
	"LPO": {name: "LPOP", min: 1, max: 1, fn: cmdLpop},
	"RPO": {name: "RPOP", min: 1, max: 1, fn: cmdRpop},
	"EXI": {name: "EXISTS", min: 1, max: -1, fn: cmdExists},
	"TYP": {name: "TYPE", min: 1, max: 1, fn: cmdType},
	"LLE": {name: "LLEN", min: 1, max: 1, fn: cmdLlen},
	"LIN": {name: "LINDEX", min: 2, max: 2, fn: cmdLindex},
	"PIN": {name: "PING", min: 0, max: 1, fn: cmdPing},
	"COM": {name: "COMMAND", min: 0, max: -1, fn: cmdCommand},
}

// Execute runs cmd against d and returns the complete RESP reply, including
// the trailing CRLF. It never returns an error: failures are rendered as
// RESP error replies so the connection can continue.
func Execute(d *hashdict.Dict, cmd resp.Command) []byte {
	spec, ok := commandTable[dispatchKey(cmd.Name)]
	if !ok {
		metrics.CommandErrors.WithLabelValues("unknown_command").Inc()
		return errorReply(unknownCommand(string(cmd.Name)).Error())
	}
	metrics.CommandsByName.WithLabelValues(spec.name).Inc()
	n := len(cmd.Args)
	if n < spec.min || (spec.max >= 0 && n > spec.max) {
		metrics.CommandErrors.WithLabelValues("wrong_arity").Inc()
		return errorReply(wrongArity(spec.name).Error())
	}
	reply, err := spec.fn(d, cmd.Args)
	if err != nil {
		metrics.CommandErrors.WithLabelValues("command_error").Inc()
		return errorReply(err.Error())
	}
	return reply
}

func dispatchKey(name []byte) string {
	if len(name) < 3 {
		return ""
	}
	key := make([]byte, 3)
	for i := 0; i < 3; i++ {
		key[i] = toUpperASCII(name[i])
	}
	return string(key)
}

func toUpperASCII(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 32
	}
	return b
}

func getOrCreateList(d *hashdict.Dict, key []byte) (*value.Value, error) {
	v, ok := d.LookupMut(key)
	if !ok {
		d.Insert(key, value.NewList())
		v, _ = d.LookupMut(key)
		return v, nil
	}
	if !v.IsList() {
		return nil, ErrWrongType
	}
	return v, nil
}

func cmdSet(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	d.Insert(args[0], value.NewString(args[1]))
	return simpleString("OK"), nil
}

func cmdGet(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	v, ok := d.Lookup(args[0])
	if !ok {
		return nilBulk(), nil
	}
	if v.IsList() {
		return nil, ErrWrongType
	}
	return bulkString(v.Bytes()), nil
}

func cmdDel(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	count := 0
	for _, k := range args {
		if d.Delete(k) {
			count++
		}
	}
	return integer(count), nil
}

func cmdLpush(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	v, err := getOrCreateList(d, args[0])
	if err != nil {
		return nil, err
	}
	if err := v.List().InsertAt(0, args[1]); err != nil {
		return nil, err
	}
	return simpleString("OK"), nil
}

func cmdRpush(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	v, err := getOrCreateList(d, args[0])
	if err != nil {
		return nil, err
	}
	if err := v.List().Push(args[1]); err != nil {
		return nil, err
	}
	return simpleString("OK"), nil
}

func cmdLpop(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	v, ok := d.LookupMut(args[0])
	if !ok {
		return nilBulk(), nil
	}
	if !v.IsList() {
		return nil, ErrWrongType
	}
	if v.List().Len() == 0 {
		return nilBulk(), nil
	}
	el, err := v.List().PopHead()
	if err != nil {
		return nil, err
	}
	return bulkString(el.Bytes()), nil
}

func cmdRpop(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	v, ok := d.LookupMut(args[0])
	if !ok {
		return nilBulk(), nil
	}
	if !v.IsList() {
		return nil, ErrWrongType
	}
	if v.List().Len() == 0 {
		return nilBulk(), nil
	}
	el, err := v.List().PopTail()
	if err != nil {
		return nil, err
	}
	return bulkString(el.Bytes()), nil
}

func cmdExists(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	count := 0
	for _, k := range args {
		if _, ok := d.Lookup(k); ok {
			count++
		}
	}
	return integer(count), nil
}

func cmdType(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	v, ok := d.Lookup(args[0])
	if !ok {
		return simpleString("none"), nil
	}
	return simpleString(v.Kind().String()), nil
}

func cmdLlen(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	v, ok := d.Lookup(args[0])
	if !ok {
		return integer(0), nil
	}
	if !v.IsList() {
		return nil, ErrWrongType
	}
	return integer(v.List().Len()), nil
}

func cmdLindex(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	v, ok := d.Lookup(args[0])
	if !ok {
		return nilBulk(), nil
	}
	if !v.IsList() {
		return nil, ErrWrongType
	}
	idx, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return nil, errNotAnInteger
	}
	el, err := v.List().Get(idx)
	if err != nil {
		return nilBulk(), nil
	}
	return bulkString(el.Bytes()), nil
}

func cmdPing(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	if len(args) == 0 {
		return simpleString("PONG"), nil
	}
	return bulkString(args[0]), nil
}

func cmdCommand(d *hashdict.Dict, args [][]byte) ([]byte, error) {
	return integer(len(commandTable)), nil
}
