package chirp

import "maps"

// DecodeFunc turns a TLV payload into its typed form.
type DecodeFunc func(payload []byte) (Payload, error)

// Registry maps TLV type codes to payload decoders. A Registry is read-only
// once handed to a Parser.
type Registry struct {
	decoders map[TLVType]DecodeFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[TLVType]DecodeFunc)}
}

// DefaultRegistry returns a registry holding decoders for every custom TLV
// type the firmware emits.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TLVComplexRangeFFT, decodeAs(DecodeComplexRangeFFT))
	r.Register(TLVTargetIQ, decodeAs(DecodeTargetIQ))
	r.Register(TLVPhaseOutput, decodeAs(DecodePhaseOutput))
	r.Register(TLVPresence, decodeAs(DecodePresence))
	r.Register(TLVMotionStatus, decodeAs(DecodeMotionStatus))
	r.Register(TLVTargetInfo, decodeAs(DecodeTargetInfo))
	return r
}

var defaultRegistry = DefaultRegistry()

func decodeAs[T Payload](fn func([]byte) (T, error)) DecodeFunc {
	return func(b []byte) (Payload, error) {
		v, err := fn(b)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Register installs fn for type t, replacing any existing decoder.
func (r *Registry) Register(t TLVType, fn DecodeFunc) {
	if fn == nil {
		delete(r.decoders, t)
		return
	}
	r.decoders[t] = fn
}

// Lookup returns the decoder for t.
func (r *Registry) Lookup(t TLVType) (DecodeFunc, bool) {
	fn, ok := r.decoders[t]
	return fn, ok
}

// Types returns the registered type codes in no particular order.
func (r *Registry) Types() []TLVType {
	types := make([]TLVType, 0, len(r.decoders))
	for t := range maps.Keys(r.decoders) {
		types = append(types, t)
	}
	return types
}

// Decode runs the decoder registered for t. ok is false when no decoder is
// registered, in which case the TLV is left raw.
func (r *Registry) Decode(t TLVType, payload []byte) (p Payload, ok bool, err error) {
	fn, ok := r.decoders[t]
	if !ok {
		return nil, false, nil
	}
	p, err = fn(payload)
	return p, true, err
}
