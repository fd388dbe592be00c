package proto

import (
	"testing"

	"github.com/stretchr/testify/require"

	apierrors "github.com/gridkv/gridkv/errors"
)

func TestEntry_Codec(t *testing.T) {
	entry := &Entry{
		Key:      []byte("user:42"),
		Value:    []byte("payload"),
		Created:  1690000000000,
		LastUsed: 1690000001000,
		Lifespan: 3600,
		MaxIdle:  -1,
	}

	decoded := &Entry{}
	require.NoError(t, decoded.Unmarshal(entry.Marshal()))
	require.Equal(t, entry, decoded)
}

func TestEntry_KeyOnly(t *testing.T) {
	entry := &Entry{Key: []byte("k")}
	decoded := &Entry{}
	require.NoError(t, decoded.Unmarshal(entry.Marshal()))
	require.Equal(t, []byte("k"), decoded.Key)
	require.Nil(t, decoded.Value)
}

func TestEntry_Corrupted(t *testing.T) {
	decoded := &Entry{Key: []byte("untouched")}
	require.ErrorIs(t, decoded.Unmarshal([]byte{0xff, 0x01, 0x02}), apierrors.ErrCorruptedData)
	// a failed decode never leaves a partial entry behind
	require.Equal(t, []byte("untouched"), decoded.Key)

	// missing key field
	require.ErrorIs(t, decoded.Unmarshal(nil), apierrors.ErrCorruptedData)
}

func TestWireMarshaller_Params(t *testing.T) {
	m := WireMarshaller{}

	for _, v := range []interface{}{"prefix-*", int64(-17), []byte{0x00, 0x01}} {
		b, err := m.MarshalParam(v)
		require.NoError(t, err)
		decoded, err := m.UnmarshalParam(b)
		require.NoError(t, err)
		require.Equal(t, v, decoded)
	}

	// plain ints normalize to int64
	b, err := m.MarshalParam(7)
	require.NoError(t, err)
	decoded, err := m.UnmarshalParam(b)
	require.NoError(t, err)
	require.Equal(t, int64(7), decoded)

	_, err = m.MarshalParam(3.14)
	require.ErrorIs(t, err, apierrors.ErrUnsupportedParam)

	_, err = m.UnmarshalParam([]byte{0xff})
	require.ErrorIs(t, err, apierrors.ErrCorruptedData)
}
