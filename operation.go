package querycache

// OpClass is how the interceptor treats a model operation.
type OpClass uint8

const (
	OpPassThrough OpClass = iota // no cache interaction
	OpRead                       // lookup first, fill on miss
	OpWrite                      // always execute, write-through
)

func (c OpClass) String() string {
	switch c {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "passthrough"
	}
}

var (
	DefaultReadOperations = []string{
		"findUnique", "findUniqueOrThrow",
		"findFirst", "findFirstOrThrow",
		"findMany", "count", "aggregate", "groupBy",
	}
	DefaultWriteOperations = []string{
		"create", "createMany",
		"update", "updateMany",
		"upsert",
		"delete", "deleteMany",
	}
)

type classifier map[string]OpClass

func newClassifier(reads, writes []string) classifier {
	if reads == nil {
		reads = DefaultReadOperations
	}
	if writes == nil {
		writes = DefaultWriteOperations
	}
	m := make(classifier, len(reads)+len(writes))
	for _, op := range reads {
		m[op] = OpRead
	}
	// writes win when an operation is listed twice
	for _, op := range writes {
		m[op] = OpWrite
	}
	return m
}

func (c classifier) classify(op string) OpClass {
	return c[op] // missing => OpPassThrough
}
