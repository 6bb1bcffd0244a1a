package core

// Command is a server command definition, used by the cli for help and
// completion.
type Command struct {
	Name    string
	Group   string
	Summary string
	Usage   string
}

// TermOutput formats the command for terminal help output.
func (c Command) TermOutput(indent string) string {
	return indent + c.Usage + "\n" + indent + indent + c.Summary + ".\n"
}

// Commands is the table of all commands the server accepts.
var Commands = map[string]Command{
	"AOFSHRINK": {
		Name:    "AOFSHRINK",
		Group:   "server",
		Summary: "Rewrites the appendonly file from the in-memory dataset",
		Usage:   "AOFSHRINK",
	},
	"AUTH": {
		Name:    "AUTH",
		Group:   "connection",
		Summary: "Authenticates the connection",
		Usage:   "AUTH password",
	},
	"BOUNDS": {
		Name:    "BOUNDS",
		Group:   "keys",
		Summary: "Returns the combined bounds of all shapes in a key",
		Usage:   "BOUNDS key",
	},
	"CLIENT": {
		Name:    "CLIENT",
		Group:   "server",
		Summary: "Manages client connections",
		Usage:   "CLIENT (LIST | COUNT | ID | GETNAME | SETNAME name | KILL (addr | id))",
	},
	"CONFIG": {
		Name:    "CONFIG",
		Group:   "server",
		Summary: "Reads or writes server configuration",
		Usage:   "CONFIG (GET param | SET param value | REWRITE)",
	},
	"DEL": {
		Name:    "DEL",
		Group:   "keys",
		Summary: "Removes a shape from a key",
		Usage:   "DEL key id",
	},
	"DROP": {
		Name:    "DROP",
		Group:   "keys",
		Summary: "Removes a key and every shape in it",
		Usage:   "DROP key",
	},
	"ECHO": {
		Name:    "ECHO",
		Group:   "connection",
		Summary: "Echoes the message back to the client",
		Usage:   "ECHO message",
	},
	"EXPIRE": {
		Name:    "EXPIRE",
		Group:   "keys",
		Summary: "Sets a timeout on a shape",
		Usage:   "EXPIRE key id seconds",
	},
	"FLUSHDB": {
		Name:    "FLUSHDB",
		Group:   "server",
		Summary: "Removes all keys",
		Usage:   "FLUSHDB",
	},
	"GC": {
		Name:    "GC",
		Group:   "server",
		Summary: "Forces a garbage collection",
		Usage:   "GC",
	},
	"GET": {
		Name:    "GET",
		Group:   "keys",
		Summary: "Gets the shape of an id",
		Usage:   "GET key id [WITHFIELDS] (OBJECT | POINT | BOUNDS | HASH precision)",
	},
	"HEALTHZ": {
		Name:    "HEALTHZ",
		Group:   "server",
		Summary: "Returns OK once the server is ready to accept commands",
		Usage:   "HEALTHZ",
	},
	"INTERSECTS": {
		Name:    "INTERSECTS",
		Group:   "search",
		Summary: "Finds shapes intersecting an area",
		Usage: "INTERSECTS key [CURSOR start] [LIMIT count] [MATCH pattern] " +
			"[IDS | COUNT | OBJECTS | POINTS | BOUNDS | HASHES precision] " +
			"[BUFFER meters] (BOUNDS minlat minlon maxlat maxlon | " +
			"OBJECT geojson | HASH geohash | GET key id)",
	},
	"KEYS": {
		Name:    "KEYS",
		Group:   "keys",
		Summary: "Finds all keys matching a glob pattern",
		Usage:   "KEYS pattern",
	},
	"MASSINSERT": {
		Name:    "MASSINSERT",
		Group:   "dev",
		Summary: "Inserts random shapes for testing (dev mode only)",
		Usage:   "MASSINSERT numkeys numshapes [minlat minlon maxlat maxlon]",
	},
	"MERGE": {
		Name:    "MERGE",
		Group:   "merge",
		Summary: "Merges the shapes of a key into one connected polygon",
		Usage: "MERGE key [MATCH pattern] [BOUNDS minlat minlon maxlat maxlon] " +
			"[FACTOR factor] [SAMPLES count] [STORE destkey destid] [DEBUG]",
	},
	"MERGEHISTORY": {
		Name:    "MERGEHISTORY",
		Group:   "merge",
		Summary: "Returns the journal of recent merges",
		Usage:   "MERGEHISTORY [LIMIT count]",
	},
	"NEARBY": {
		Name:    "NEARBY",
		Group:   "search",
		Summary: "Finds the shapes nearest to a point",
		Usage: "NEARBY key [CURSOR start] [LIMIT count] [MATCH pattern] " +
			"[DISTANCE] [IDS | COUNT | OBJECTS | POINTS | BOUNDS | HASHES precision] " +
			"POINT lat lon",
	},
	"OUTPUT": {
		Name:    "OUTPUT",
		Group:   "connection",
		Summary: "Gets or sets the output format for the connection",
		Usage:   "OUTPUT [json | resp]",
	},
	"PDEL": {
		Name:    "PDEL",
		Group:   "keys",
		Summary: "Removes every shape matching a glob pattern",
		Usage:   "PDEL key pattern",
	},
	"PERSIST": {
		Name:    "PERSIST",
		Group:   "keys",
		Summary: "Removes an existing timeout of a shape",
		Usage:   "PERSIST key id",
	},
	"PING": {
		Name:    "PING",
		Group:   "connection",
		Summary: "Pings the server",
		Usage:   "PING",
	},
	"QUIT": {
		Name:    "QUIT",
		Group:   "connection",
		Summary: "Closes the connection",
		Usage:   "QUIT",
	},
	"READONLY": {
		Name:    "READONLY",
		Group:   "server",
		Summary: "Turns the read-only mode on or off",
		Usage:   "READONLY (yes | no)",
	},
	"SCAN": {
		Name:    "SCAN",
		Group:   "keys",
		Summary: "Incrementally iterates the shapes of a key",
		Usage: "SCAN key [CURSOR start] [LIMIT count] [MATCH pattern] " +
			"[NOFIELDS] [ASC | DESC] " +
			"[IDS | COUNT | OBJECTS | POINTS | BOUNDS | HASHES precision]",
	},
	"SERVER": {
		Name:    "SERVER",
		Group:   "server",
		Summary: "Returns server stats",
		Usage:   "SERVER",
	},
	"SET": {
		Name:    "SET",
		Group:   "keys",
		Summary: "Stores a polygonal shape under a key and id",
		Usage: "SET key id [FIELD name value ...] [EX seconds] " +
			"(OBJECT geojson | BOUNDS minlat minlon maxlat maxlon)",
	},
	"SHUTDOWN": {
		Name:    "SHUTDOWN",
		Group:   "dev",
		Summary: "Shuts the server down (dev mode only)",
		Usage:   "SHUTDOWN",
	},
	"SLEEP": {
		Name:    "SLEEP",
		Group:   "dev",
		Summary: "Sleeps for some seconds (dev mode only)",
		Usage:   "SLEEP seconds",
	},
	"STATS": {
		Name:    "STATS",
		Group:   "keys",
		Summary: "Returns stats for one or more keys",
		Usage:   "STATS key [key ...]",
	},
	"TIMEOUT": {
		Name:    "TIMEOUT",
		Group:   "connection",
		Summary: "Gets or sets the read deadline for the connection",
		Usage:   "TIMEOUT [seconds]",
	},
	"TTL": {
		Name:    "TTL",
		Group:   "keys",
		Summary: "Returns the remaining seconds before a shape expires",
		Usage:   "TTL key id",
	},
}
