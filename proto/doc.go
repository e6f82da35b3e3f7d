/*
Package proto provides primitives for encoding/decoding messages of a
line-oriented, binary-safe request/response protocol (RESP).

Protocol definition:

| Runtime type  | Go type      | Leading Byte |
|---------------|--------------|--------------|
| simple string | SimpleString | +            |
| error         | Error        | -            |
| integer       | Integer      | :            |
| bulk string   | BulkString   | $            |
| array         | Array        | *            |

Some simple rules to follow:
- every line is terminated by CRLF ("\r\n")
- simple strings and errors carry their text up to the first CRLF and
  therefore can not contain one
- integers are base-10, optionally negative
- bulk strings carry their byte length, CRLF, the raw bytes, CRLF
- arrays carry their element count, CRLF, then every element encoded one
  after another with nothing in between
- there is no null value: "$-1" and "*-1" are rejected

Examples:

|                    Value                    |            Message             |
|---------------------------------------------|--------------------------------|
| SimpleString("OK")                          | +OK\r\n                        |
| Error("ERR not found")                      | -ERR not found\r\n             |
| Integer(-42)                                | :-42\r\n                       |
| BulkString("foobar")                        | $6\r\nfoobar\r\n               |
| Array{Integer(1), Integer(2)}               | *2\r\n:1\r\n:2\r\n             |
| Array{}                                     | *0\r\n                         |

Decoding never reads past what the framing declares and reports short
input as a *DecodeError whose NeedMore method returns true, so a
transport can tell "wait for more bytes" from "malformed message".
Buffering partial input is left to the caller, see NewScanner.

More examples could be found in decoder_test.go and encoder_test.go.
*/
package proto
