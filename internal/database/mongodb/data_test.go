package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omnidao/omnidao/pkg/adapter"
)

func TestCopyRecordDetachesFromInput(t *testing.T) {
	in := adapter.Record{"id": int64(1), "name": "a"}

	out := copyRecord(in)
	assert.Equal(t, in, out)

	out["name"] = "b"
	in["id"] = int64(2)
	assert.Equal(t, "a", in["name"])
	assert.Equal(t, int64(1), out["id"])
}
