// Package sqlstream exposes a database.Session as stream sources, flows and
// sinks.
//
//	users := sqlstream.Source(session, "SELECT id, name FROM users", func(r database.Row) (User, error) {
//	    var u User
//	    return u, r.Scan(&u.ID, &u.Name)
//	})
//
//	insert := sqlstream.Sink(session, func(u User) (string, error) {
//	    return "INSERT INTO archive VALUES (" + strconv.FormatInt(u.ID, 10) + ")", nil
//	}, sqlstream.WithParallelism(4))
//
//	err := stream.RunWith(ctx, users, insert).Wait(ctx)
//
// Statements are complete SQL text; there is no parameter binding. Any
// caller-controlled value placed in a statement must be quoted by the caller
// (database.QuoteLiteral, or a statement builder). Unquoted concatenation is
// an SQL injection hole.
//
// Errors from the session, from row decoding and from the caller's
// functions end the stream as-is; nothing is retried or suppressed.
package sqlstream
