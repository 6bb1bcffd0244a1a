package server

import (
	"bytes"
	"time"

	"github.com/landbridge/landbridge/internal/glob"
	"github.com/landbridge/landbridge/internal/object"
	"github.com/tidwall/resp"
)

func (server *Server) cmdScanArgs(vs []string) (
	s searchScanBaseTokens, err error,
) {
	vs, s, err = parseSearchScanBaseTokens("scan", s, vs)
	if err != nil {
		return
	}
	if len(vs) != 0 {
		err = errInvalidNumberOfArguments
		return
	}
	return
}

func (server *Server) cmdScan(msg *Message) (res resp.Value, err error) {
	start := time.Now()
	vs := msg.Args[1:]

	args, err := server.cmdScanArgs(vs)
	if err != nil {
		return NOMessage, err
	}
	wr := &bytes.Buffer{}
	sw, err := server.newScanWriter(wr, msg, args.key, args.output,
		args.precision, args.globs, args.cursor, args.limit, args.nofields)
	if err != nil {
		return NOMessage, err
	}
	if msg.OutputType == JSON {
		wr.WriteString(`{"ok":true`)
	}
	if sw.col != nil {
		if sw.output == outputCount && sw.globEverything {
			count := sw.col.Count() - int(args.cursor)
			if count < 0 {
				count = 0
			}
			sw.count = uint64(count)
		} else {
			iter := func(o *object.Object) bool {
				return sw.pushObject(ScanWriterParams{obj: o})
			}
			// a single glob may narrow the scan to a key range
			var limits [2]string
			if len(args.globs) == 1 {
				g := glob.Parse(args.globs[0], args.desc)
				limits[0], limits[1] = g.Limits[0], g.Limits[1]
			}
			if limits[0] == "" && limits[1] == "" {
				sw.col.Scan(args.desc, sw, msg.Deadline, iter)
			} else {
				sw.col.ScanRange(limits[0], limits[1], args.desc, sw,
					msg.Deadline, iter)
			}
		}
	}
	sw.writeFoot()
	if msg.OutputType == JSON {
		wr.WriteString(`,"elapsed":"` + time.Now().Sub(start).String() + "\"}")
		return resp.BytesValue(wr.Bytes()), nil
	}
	return sw.respOut, nil
}
