package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// KeyGenerator derives a cache key from an RPC method and its request
type KeyGenerator interface {
	GenerateKey(method string, req interface{}) (string, error)
}

// KeyFunc adapts a plain function to KeyGenerator
type KeyFunc func(method string, req interface{}) (string, error)

// GenerateKey calls f
func (f KeyFunc) GenerateKey(method string, req interface{}) (string, error) {
	return f(method, req)
}

// HashKeyGenerator keys on the method plus a SHA-256 of the request. Protobuf
// messages are encoded deterministically; anything else is encoded as JSON.
type HashKeyGenerator struct {
	marshal proto.MarshalOptions
}

// NewHashKeyGenerator creates the default key generator
func NewHashKeyGenerator() *HashKeyGenerator {
	return &HashKeyGenerator{
		marshal: proto.MarshalOptions{Deterministic: true},
	}
}

// GenerateKey returns "<method>:<hex sha256 of request>"
func (g *HashKeyGenerator) GenerateKey(method string, req interface{}) (string, error) {
	var (
		payload []byte
		err     error
	)

	if msg, ok := req.(proto.Message); ok {
		payload, err = g.marshal.Marshal(msg)
	} else {
		payload, err = json.Marshal(req)
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	sum := sha256.Sum256(payload)
	return method + ":" + hex.EncodeToString(sum[:]), nil
}

// MethodKeyGenerator uses a generator registered for the method, falling back
// to a default one
type MethodKeyGenerator struct {
	fallback KeyGenerator
	methods  map[string]KeyGenerator
}

// NewMethodKeyGenerator creates a per-method generator; a nil fallback means
// HashKeyGenerator
func NewMethodKeyGenerator(fallback KeyGenerator) *MethodKeyGenerator {
	if fallback == nil {
		fallback = NewHashKeyGenerator()
	}

	return &MethodKeyGenerator{
		fallback: fallback,
		methods:  make(map[string]KeyGenerator),
	}
}

// Register sets the generator used for method. Not safe to call while keys are
// being generated.
func (g *MethodKeyGenerator) Register(method string, gen KeyGenerator) {
	g.methods[method] = gen
}

// GenerateKey dispatches on method
func (g *MethodKeyGenerator) GenerateKey(method string, req interface{}) (string, error) {
	if gen, ok := g.methods[method]; ok {
		return gen.GenerateKey(method, req)
	}
	return g.fallback.GenerateKey(method, req)
}

// MethodOnly keys on the method name alone, for parameterless reads such as
// fleet-wide KPI summaries
var MethodOnly = KeyFunc(func(method string, _ interface{}) (string, error) {
	return method, nil
})
