package index

// Key schema, shared with the query engine. Every key lives under a
// caller-supplied prefix so multiple logical indexes can coexist in one
// backend.
//
//	<prefix>:requests:by_date   ZSET   id -> epoch score
//	<prefix>:req:<id>           STRING raw record JSON
//	<prefix>:seen:<id>          STRING dedupe marker
//	<prefix>:<kind>:<value>     SET    ids with that attribute value

func TimeKey(prefix string) string {
	return prefix + ":requests:by_date"
}

func RecordKey(prefix, id string) string {
	return prefix + ":req:" + id
}

func SeenKey(prefix, id string) string {
	return prefix + ":seen:" + id
}

func AttrKey(prefix, kind, value string) string {
	return prefix + ":" + kind + ":" + value
}
