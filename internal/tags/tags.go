// Package tags builds the ordered label sets attached to every metric the
// sink emits: fixed test-identity fields first, then user-configured custom
// tags, then the scenario and step context when present.
package tags

import (
	"errors"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
)

// Reserved label keys. Custom tags must not reuse them; config validation
// rejects collisions before the sink initializes.
const (
	KeySessionID        = "session_id"
	KeyCurrentOperation = "current_operation"
	KeyNodeType         = "node_type"
	KeyTestSuite        = "test_suite"
	KeyTestName         = "test_name"
	KeyClusterID        = "cluster_id"
	KeyScenarioName     = "scenario_name"
	KeyStepName         = "step_name"
)

// ReservedKeys lists every label key the sink assigns itself.
var ReservedKeys = []string{
	KeySessionID,
	KeyCurrentOperation,
	KeyNodeType,
	KeyTestSuite,
	KeyTestName,
	KeyClusterID,
	KeyScenarioName,
	KeyStepName,
}

// ErrMissingIdentity indicates the test identity was never resolved, which
// means a lifecycle hook ran before Init.
var ErrMissingIdentity = errors.New("test identity is not set")

// Identity carries the fixed test-identity fields, resolved once at Init
// and read-only afterwards.
type Identity struct {
	SessionID        string
	CurrentOperation string
	NodeType         string
	TestSuite        string
	TestName         string
	ClusterID        string
}

// NewSessionID generates a lexicographically sortable session identifier
// using the package's monotonic crypto/rand entropy, so identifiers from one
// process are strictly increasing.
func NewSessionID() string {
	return ulid.Make().String()
}

// Tag is one user-configured key/value pair appended to every label set.
type Tag struct {
	Key   string
	Value string
}

// Builder constructs label sets for a single test session. The identity and
// custom tags are fixed for the builder's lifetime; each call returns a
// fresh slice sized exactly for its call site.
type Builder struct {
	identity Identity
	custom   []Tag
}

// NewBuilder creates a Builder. Returns ErrMissingIdentity when the identity
// carries no session id, which indicates an out-of-order lifecycle call.
func NewBuilder(identity Identity, custom []Tag) (*Builder, error) {
	if identity.SessionID == "" {
		return nil, ErrMissingIdentity
	}
	return &Builder{identity: identity, custom: custom}, nil
}

// Base returns the identity fields followed by the custom tags. Length is
// exactly 6 + len(custom).
func (b *Builder) Base() []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, 6+len(b.custom)+2)
	kvs = append(kvs,
		attribute.String(KeySessionID, b.identity.SessionID),
		attribute.String(KeyCurrentOperation, b.identity.CurrentOperation),
		attribute.String(KeyNodeType, b.identity.NodeType),
		attribute.String(KeyTestSuite, b.identity.TestSuite),
		attribute.String(KeyTestName, b.identity.TestName),
		attribute.String(KeyClusterID, b.identity.ClusterID),
	)
	for _, tag := range b.custom {
		kvs = append(kvs, attribute.String(tag.Key, tag.Value))
	}
	return kvs
}

// ForScenario returns the base labels plus scenario_name. Length is exactly
// 6 + len(custom) + 1; the step slot is never present at scenario grain.
func (b *Builder) ForScenario(scenarioName string) []attribute.KeyValue {
	return append(b.Base(), attribute.String(KeyScenarioName, scenarioName))
}

// ForStep returns the base labels plus scenario_name and step_name. Length
// is exactly 6 + len(custom) + 2.
func (b *Builder) ForStep(scenarioName, stepName string) []attribute.KeyValue {
	return append(b.ForScenario(scenarioName), attribute.String(KeyStepName, stepName))
}

// Custom returns only the custom tags as attributes, for ad-hoc realtime
// metrics that carry their own context fields.
func (b *Builder) Custom() []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(b.custom)+4)
	for _, tag := range b.custom {
		kvs = append(kvs, attribute.String(tag.Key, tag.Value))
	}
	return kvs
}
