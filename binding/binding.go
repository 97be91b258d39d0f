package binding

import (
	"strconv"
	"strings"
	"time"

	"github.com/hhkbp2/tpccbench"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/store"
)

// AddBindings registers the stores backed by external databases.
func AddBindings() {
	tpccbench.Stores["mysql"] = NewMysqlStoreFromProperties
	tpccbench.Stores["cassandra"] = NewCassandraStoreFromProperties
}

func NewMysqlStoreFromProperties(props tpccbench.Properties, logger log.Logger) (store.Store, error) {
	port, err := strconv.Atoi(props.GetDefault(PropertyMysqlPort, PropertyMysqlPortDefault))
	if err != nil {
		return nil, store.NewValidationError("invalid %s: %s", PropertyMysqlPort, err)
	}
	maxOpenConns, err := strconv.Atoi(props.GetDefault(PropertyMysqlMaxOpenConns, PropertyMysqlMaxOpenConnsDefault))
	if err != nil {
		return nil, store.NewValidationError("invalid %s: %s", PropertyMysqlMaxOpenConns, err)
	}
	return NewMysqlStore(MysqlOptions{
		Host:         props.GetDefault(PropertyMysqlHost, PropertyMysqlHostDefault),
		Port:         port,
		Database:     props.GetDefault(PropertyMysqlDatabase, PropertyMysqlDatabaseDefault),
		User:         props.GetDefault(PropertyMysqlUser, PropertyMysqlUserDefault),
		Password:     props.GetDefault(PropertyMysqlPassword, PropertyMysqlPasswordDefault),
		Options:      props.GetDefault(PropertyMysqlOptions, PropertyMysqlOptionsDefault),
		MaxOpenConns: maxOpenConns,
	}, logger)
}

func NewCassandraStoreFromProperties(props tpccbench.Properties, logger log.Logger) (store.Store, error) {
	opts, err := cassandraOptionsOf(props)
	if err != nil {
		return nil, err
	}
	session, err := NewGoCqlSession(opts)
	if err != nil {
		return nil, err
	}
	logger.Info("cassandra store opened", "hosts", opts.Hosts, "keyspace", opts.Keyspace)
	return NewCassandraStore(session, logger), nil
}

func cassandraOptionsOf(props tpccbench.Properties) (CassandraOptions, error) {
	timeout, err := time.ParseDuration(props.GetDefault(PropertyCassandraTimeout, PropertyCassandraTimeoutDefault))
	if err != nil {
		return CassandraOptions{}, store.NewValidationError("invalid %s: %s", PropertyCassandraTimeout, err)
	}
	replication, err := strconv.Atoi(props.GetDefault(PropertyCassandraReplication, PropertyCassandraReplicationDefault))
	if err != nil {
		return CassandraOptions{}, store.NewValidationError("invalid %s: %s", PropertyCassandraReplication, err)
	}
	connections, err := strconv.Atoi(props.GetDefault(PropertyCassandraConnections, PropertyCassandraConnectionsDefault))
	if err != nil {
		return CassandraOptions{}, store.NewValidationError("invalid %s: %s", PropertyCassandraConnections, err)
	}
	hosts := strings.Split(props.GetDefault(PropertyCassandraHosts, PropertyCassandraHostsDefault), ",")
	for i := range hosts {
		hosts[i] = strings.TrimSpace(hosts[i])
	}
	return CassandraOptions{
		Hosts:       hosts,
		Keyspace:    props.GetDefault(PropertyCassandraKeyspace, PropertyCassandraKeyspaceDefault),
		Consistency: props.GetDefault(PropertyCassandraConsistency, PropertyCassandraConsistencyDefault),
		Timeout:     timeout,
		Connections: connections,
		Replication: replication,
	}, nil
}
