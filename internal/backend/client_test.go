package backend

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreatePostPayloadRewritesKeys(t *testing.T) {
	body, err := CreatePostPayload(map[string]interface{}{
		"ticketId": "DCU1",
		"unknown":  "passthrough",
	})
	assert.NoError(t, err)

	var decoded map[string]interface{}
	assert.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "DCU1", decoded["u_number"])
	assert.Equal(t, "passthrough", decoded["unknown"])
}

func TestCreateURLParametersOperators(t *testing.T) {
	params := CreateURLParameters(map[string]interface{}{
		"createdStart": "2024-01-01",
	})
	assert.Equal(t, "?sys_created_on>=2024-01-01", params)

	params = CreateURLParameters(map[string]interface{}{
		"createdEnd": "2024-01-31",
	})
	assert.Equal(t, "?sys_created_on<=2024-01-31", params)

	assert.Equal(t, "", CreateURLParameters(nil))
}

func TestCreateParamQueryRanges(t *testing.T) {
	assert.Equal(t, "", CreateParamQuery("", ""))

	q := CreateParamQuery("2024-01-01", "")
	assert.Contains(t, q, "sys_created_on>=")
	assert.Contains(t, q, "00:00:00")

	q = CreateParamQuery("", "2024-01-31")
	assert.Contains(t, q, "sys_created_on<=")
	assert.Contains(t, q, "23:59:59")

	q = CreateParamQuery("2024-01-01", "2024-01-31")
	assert.Contains(t, q, "BETWEEN")
	assert.Contains(t, q, "@")
}

// TestCreatePaginationLinks pins the off-by-one behavior documented in
// the pagination design note: a total that is an exact multiple of limit
// decrements the last offset by limit rather than naming an empty
// trailing page.
func TestCreatePaginationLinks(t *testing.T) {
	p := CreatePaginationLinks(0, 10, 25)
	assert.Equal(t, 0, p.FirstOffset)
	assert.Nil(t, p.PreviousOffset)
	assert.NotNil(t, p.NextOffset)
	assert.Equal(t, 10, *p.NextOffset)
	assert.NotNil(t, p.LastOffset)
	assert.Equal(t, 20, *p.LastOffset)

	p = CreatePaginationLinks(0, 10, 30)
	assert.NotNil(t, p.LastOffset)
	assert.Equal(t, 20, *p.LastOffset)

	p = CreatePaginationLinks(10, 10, 25)
	assert.NotNil(t, p.PreviousOffset)
	assert.Equal(t, 0, *p.PreviousOffset)
}

func TestDecodeResultOneEmptyList(t *testing.T) {
	body := []byte(`{"result": []}`)
	rec, err := DecodeResultOne(body)
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestTotalCountFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-Total-Count", "25")
	total, ok := TotalCountFromHeader(h)
	assert.True(t, ok)
	assert.Equal(t, 25, total)

	h = http.Header{}
	_, ok = TotalCountFromHeader(h)
	assert.False(t, ok)
}
