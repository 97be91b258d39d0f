package tpccbench

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hhkbp2/tpccbench/store"
	"github.com/stretchr/testify/require"
)

func TestProperties(t *testing.T) {
	k := "key"
	v := "value"
	p := NewProperties()
	p.Add(k, v)
	x := p.Get(k)
	require.Equal(t, v, x)
	x = p.GetDefault(k, "other")
	require.Equal(t, v, x)
	require.Equal(t, "other", p.GetDefault("missing", "other"))
	k1 := "a"
	v1 := "b"
	p2 := map[string]string{k1: v1}
	p.Merge(p2)
	z := p.Get(k1)
	require.Equal(t, v1, z)
	require.Equal(t, []string{"a", "key"}, p.Keys())
}

func TestTypedProperties(t *testing.T) {
	p := NewProperties()
	n, err := p.GetInt(PropertyNumWarehouse)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	p.Add(PropertyNumWarehouse, " 12 ")
	n, err = p.GetInt(PropertyNumWarehouse)
	require.NoError(t, err)
	require.Equal(t, 12, n)

	p.Add(PropertyNumThreads, "many")
	_, err = p.GetInt(PropertyNumThreads)
	require.True(t, store.IsValidation(err))

	p.Add(PropertyNPOnly, "yes")
	_, err = p.GetBool(PropertyNPOnly)
	require.True(t, store.IsValidation(err))
}

func TestDurationProperties(t *testing.T) {
	p := NewProperties()
	d, err := p.GetDuration(PropertyDuration, time.Second)
	require.NoError(t, err)
	require.Equal(t, 200*time.Second, d)

	p.Add(PropertyBackoff, "25")
	d, err = p.GetDuration(PropertyBackoff, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 25*time.Millisecond, d)

	p.Add(PropertyRampUpTime, "1m30s")
	d, err = p.GetDuration(PropertyRampUpTime, time.Second)
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, d)

	p.Add(PropertyRampUpTime, "soon")
	_, err = p.GetDuration(PropertyRampUpTime, time.Second)
	require.True(t, store.IsValidation(err))
}

func writeConfig(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadProperties(t *testing.T) {
	dir, err := ioutil.TempDir("", "tpcc-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := writeConfig(t, dir, "tpcc.properties",
		"num_warehouse=4\nnum_threads=8\nmysql.host=db1\n")
	p, err := LoadProperties(path)
	require.NoError(t, err)
	require.Equal(t, "4", p.Get(PropertyNumWarehouse))
	require.Equal(t, "8", p.Get(PropertyNumThreads))
	require.Equal(t, "db1", p.Get("mysql.host"))

	path = writeConfig(t, dir, "tpcc.yaml",
		"num_warehouse: 2\nuse_table_index: true\ncassandra:\n  hosts: [10.0.0.1, 10.0.0.2]\n")
	p, err = LoadProperties(path)
	require.NoError(t, err)
	require.Equal(t, "2", p.Get(PropertyNumWarehouse))
	require.Equal(t, "true", p.Get(PropertyUseTableIndex))
	require.Equal(t, "10.0.0.1,10.0.0.2", p.Get("cassandra.hosts"))

	_, err = LoadProperties(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
