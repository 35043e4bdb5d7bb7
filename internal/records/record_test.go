package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecords(t *testing.T) {
	data := []byte(`[
		{"thread_id": 1, "body": "a"},
		{"thread_id": "1", "body": "b"},
		{"thread_id": 2},
		{"body": "x"},
		{"thread_id": null, "body": "y"},
		{"thread_id": "t-3", "body": 42},
		"not an object"
	]`)

	recs, err := ParseRecords(data)
	require.NoError(t, err)
	require.Len(t, recs, 7)

	require.NotNil(t, recs[0].GroupKey)
	assert.Equal(t, "1", *recs[0].GroupKey)
	assert.Equal(t, "a", recs[0].Body)

	require.NotNil(t, recs[1].GroupKey)
	assert.Equal(t, "1", *recs[1].GroupKey)

	require.NotNil(t, recs[2].GroupKey)
	assert.Equal(t, "2", *recs[2].GroupKey)
	assert.Equal(t, "", recs[2].Body)

	assert.Nil(t, recs[3].GroupKey)
	assert.Equal(t, "x", recs[3].Body)

	assert.Nil(t, recs[4].GroupKey)

	require.NotNil(t, recs[5].GroupKey)
	assert.Equal(t, "t-3", *recs[5].GroupKey)
	assert.Equal(t, "", recs[5].Body, "non-string bodies read as empty")

	assert.Nil(t, recs[6].GroupKey)
}

func TestParseRecords_NumericIDsNormalize(t *testing.T) {
	data := []byte(`[
		{"thread_id": 1, "body": "a"},
		{"thread_id": 1.0, "body": "b"},
		{"thread_id": 1e0, "body": "c"},
		{"thread_id": "1", "body": "d"},
		{"thread_id": 2.5, "body": "e"},
		{"thread_id": -0.50, "body": "f"},
		{"thread_id": 1e400, "body": "g"}
	]`)

	recs, err := ParseRecords(data)
	require.NoError(t, err)

	keys := make([]string, len(recs))
	for i, r := range recs {
		require.NotNil(t, r.GroupKey, i)
		keys[i] = *r.GroupKey
	}
	assert.Equal(t, []string{"1", "1", "1", "1", "2.5", "-0.5", "1e400"}, keys)
	assert.Equal(t, []string{"1", "2.5", "-0.5", "1e400"}, GroupByKey(recs).Keys())
}

func TestParseRecords_Errors(t *testing.T) {
	testCases := []struct {
		name string
		data string
		want error
	}{
		{name: "invalid json", data: `[{"thread_id": 1,`, want: ErrInvalidJSON},
		{name: "object instead of list", data: `{"thread_id": 1}`, want: ErrNotAList},
		{name: "scalar", data: `"hello"`, want: ErrNotAList},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRecords([]byte(tc.data))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseRecords_EmptyList(t *testing.T) {
	recs, err := ParseRecords([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestGroupByKey(t *testing.T) {
	recs := []ThreadRecord{
		NewRecord("1", "a"),
		NewRecord("1", "b"),
		NewRecord("2", ""),
		UnkeyedRecord("x"),
	}

	groups := GroupByKey(recs)
	require.Equal(t, 2, groups.Len())
	assert.Equal(t, []string{"1", "2"}, groups.Keys())

	all := groups.All()
	require.Len(t, all, 2)
	assert.Equal(t, []string{"a", "b"}, all[0].Bodies)
	assert.Equal(t, "a b", all[0].CombinedText())
	assert.Equal(t, "", all[1].CombinedText())
}

func TestGroupByKey_PreservesFirstSeenOrder(t *testing.T) {
	recs := []ThreadRecord{
		NewRecord("zeta", "1"),
		NewRecord("alpha", "2"),
		NewRecord("zeta", "3"),
		NewRecord("10", "4"),
		NewRecord("2", "5"),
	}

	for i := 0; i < 20; i++ {
		groups := GroupByKey(recs)
		assert.Equal(t, []string{"zeta", "alpha", "10", "2"}, groups.Keys())
	}

	zeta := GroupByKey(recs).All()[0]
	assert.Equal(t, "1 3", zeta.CombinedText())
}

func TestGroup_CombinedTextTrims(t *testing.T) {
	g := Group{Key: "k", Bodies: []string{"  hello", "", "world  "}}
	assert.Equal(t, "hello  world", g.CombinedText())

	blank := Group{Key: "k", Bodies: []string{" ", "\n"}}
	assert.Equal(t, "", blank.CombinedText())
}
