package cache

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

type workOrderQuery struct {
	Status   string
	Priority string
	Page     int
}

func TestHashKeyGenerator_StableForEqualRequests(t *testing.T) {
	gen := NewHashKeyGenerator()

	k1, err := gen.GenerateKey("/pdm.WorkOrders/List", &workOrderQuery{Status: "open", Page: 1})
	require.NoError(t, err)
	k2, err := gen.GenerateKey("/pdm.WorkOrders/List", &workOrderQuery{Status: "open", Page: 1})
	require.NoError(t, err)
	k3, err := gen.GenerateKey("/pdm.WorkOrders/List", &workOrderQuery{Status: "closed", Page: 1})
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.True(t, strings.HasPrefix(k1, "/pdm.WorkOrders/List:"))
}

func TestHashKeyGenerator_ProtoMessages(t *testing.T) {
	gen := NewHashKeyGenerator()

	a, err := structpb.NewStruct(map[string]interface{}{"ship": "DDG-96", "gte": "LM2500", "limit": 50})
	require.NoError(t, err)
	b, err := structpb.NewStruct(map[string]interface{}{"limit": 50, "gte": "LM2500", "ship": "DDG-96"})
	require.NoError(t, err)

	ka, err := gen.GenerateKey("/pdm.Analytics/Predict", a)
	require.NoError(t, err)
	kb, err := gen.GenerateKey("/pdm.Analytics/Predict", b)
	require.NoError(t, err)

	assert.Equal(t, ka, kb, "Deterministic marshaling should ignore map order")
}

func TestHashKeyGenerator_EncodeError(t *testing.T) {
	_, err := NewHashKeyGenerator().GenerateKey("/m", make(chan int))
	assert.Error(t, err)
}

func TestMethodKeyGenerator(t *testing.T) {
	gen := NewMethodKeyGenerator(nil)
	gen.Register("/pdm.Analytics/FleetReadiness", MethodOnly)
	gen.Register("/pdm.Parts/Get", KeyFunc(func(method string, req interface{}) (string, error) {
		id, ok := req.(string)
		if !ok {
			return "", errors.New("expected part id")
		}
		return "part:" + id, nil
	}))

	k, err := gen.GenerateKey("/pdm.Analytics/FleetReadiness", &workOrderQuery{Page: 3})
	require.NoError(t, err)
	assert.Equal(t, "/pdm.Analytics/FleetReadiness", k)

	k, err = gen.GenerateKey("/pdm.Parts/Get", "LM2500-FUEL-07")
	require.NoError(t, err)
	assert.Equal(t, "part:LM2500-FUEL-07", k)

	_, err = gen.GenerateKey("/pdm.Parts/Get", 7)
	assert.Error(t, err)

	k, err = gen.GenerateKey("/pdm.WorkOrders/List", &workOrderQuery{Page: 1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(k, "/pdm.WorkOrders/List:"))
}
