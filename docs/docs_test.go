package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwaggerDocRenders(t *testing.T) {
	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(SwaggerInfo.ReadDoc()), &doc))

	assert.Equal(t, "Queue Sorter API", doc.Info.Title)
	assert.Contains(t, doc.Paths["/api/queues/{queue}/sort"], "post")
	assert.Len(t, doc.Paths["/api/queues/{queue}/orders/{key}"], 3)
	assert.Len(t, doc.Paths, 12)
}
