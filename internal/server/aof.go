package server

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/landbridge/landbridge/internal/log"
	"github.com/tidwall/redcon"
)

func (s *Server) loadAOF() (err error) {
	fi, err := s.aof.Stat()
	if err != nil {
		return err
	}
	start := time.Now()
	var count int
	defer func() {
		d := time.Since(start)
		ps := float64(count) / (float64(d) / float64(time.Second))
		suf := []string{"bytes/s", "KB/s", "MB/s", "GB/s", "TB/s"}
		bps := float64(fi.Size()) / (float64(d) / float64(time.Second))
		for i := 0; bps > 1024; i++ {
			if len(suf) == 1 {
				break
			}
			bps /= 1024
			suf = suf[1:]
		}
		byteSpeed := fmt.Sprintf("%.0f %s", bps, suf[0])
		log.Infof("AOF loaded %d commands: %.2fs, %.0f/s, %s",
			count, float64(d)/float64(time.Second), ps, byteSpeed)
	}()
	var buf []byte
	var args [][]byte
	var packet [0xFFFF]byte
	for {
		n, err := s.aof.Read(packet[:])
		if err != nil {
			if err != io.EOF {
				return err
			}
			if len(buf) > 0 {
				// There was an incomplete command or other data at the end of
				// the AOF file. Attempt to recover the file by truncating the
				// file at the end position of the last complete command.
				log.Warnf("Truncating %d bytes due to an incomplete command\n",
					len(buf))
				s.aofsz -= len(buf)
				if err := s.aof.Truncate(int64(s.aofsz)); err != nil {
					return err
				}
				if _, err := s.aof.Seek(int64(s.aofsz), 0); err != nil {
					return err
				}
			}
			return nil
		}
		s.aofsz += n
		data := packet[:n]
		if len(buf) > 0 {
			data = append(buf, data...)
		}
		var complete bool
		for {
			if len(data) > 0 && data[0] == 0 {
				// Zeros may be left over from a partial write.
				// Just ignore it and move the next byte.
				data = data[1:]
				continue
			}
			complete, args, _, data, err = redcon.ReadNextCommand(data, args[:0])
			if err != nil {
				return err
			}
			if !complete {
				break
			}
			if len(args) > 0 {
				var msg Message
				msg.Args = msg.Args[:0]
				for _, arg := range args {
					msg.Args = append(msg.Args, string(arg))
				}
				if _, _, err := s.command(&msg, nil); err != nil {
					if commandErrIsFatal(err) {
						return err
					}
				}
				count++
			}
		}
		if len(data) > 0 {
			buf = append(buf[:0], data...)
		} else if len(buf) > 0 {
			buf = buf[:0]
		}
	}
}

func commandErrIsFatal(err error) bool {
	// MERGE (and other writable commands) may return errors that we need
	// to ignore during the loading process. These errors may occur (though
	// unlikely) due to the aof rewrite operation.
	switch err {
	case errKeyNotFound, errIDNotFound:
		return false
	}
	return true
}

// flushAOF flushes all aof buffer data to disk. Set sync to true to sync the
// fsync the file.
func (s *Server) flushAOF(sync bool) {
	if len(s.aofbuf) > 0 {
		_, err := s.aof.Write(s.aofbuf)
		if err != nil {
			panic(err)
		}
		if sync {
			if err := s.aof.Sync(); err != nil {
				panic(err)
			}
		}
		if cap(s.aofbuf) > 1024*1024*32 {
			s.aofbuf = make([]byte, 0, 1024*1024*32)
		} else {
			s.aofbuf = s.aofbuf[:0]
		}
	}
}

func (s *Server) writeAOF(args []string, d *commandDetails) error {
	if d != nil && !d.updated {
		// just ignore writes if the command did not update
		return nil
	}

	if s.shrinking {
		nargs := make([]string, len(args))
		copy(nargs, args)
		s.shrinklog = append(s.shrinklog, nargs)
	}

	if s.aof != nil {
		atomic.StoreInt32(&s.aofdirty, 1) // prewrite optimization flag
		n := len(s.aofbuf)
		s.aofbuf = redcon.AppendArray(s.aofbuf, len(args))
		for _, arg := range args {
			s.aofbuf = redcon.AppendBulkString(s.aofbuf, arg)
		}
		s.aofsz += len(s.aofbuf) - n
	}
	return nil
}
