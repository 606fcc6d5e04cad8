package saxdb

import (
	"fmt"
	"strconv"

	"ircservd/internal/recorddb"
)

// WriteContext is the builder handed to a Writer callback (§4.4):
// start_record/end_record for nested objects, plus scalar/int/list leaf
// writers. The complex flag on StartRecord is not used: recorddb.Write
// renders every object across several lines, whatever its number of
// children. StartRecord always produces an object, matching srvx's
// saxdb_write semantics.
type WriteContext struct {
	stack []*recorddb.Object
}

func newWriteContext(root *recorddb.Object) *WriteContext {
	return &WriteContext{stack: []*recorddb.Object{root}}
}

func (c *WriteContext) current() *recorddb.Object {
	return c.stack[len(c.stack)-1]
}

// StartRecord opens a new nested object named name and descends into it.
// The complex flag is accepted for interface fidelity with §4.4 and is
// ignored: recorddb's writer renders every object across several lines.
func (c *WriteContext) StartRecord(name string, complex bool) {
	child := recorddb.NewObject()
	c.current().SetObject(name, child)
	c.stack = append(c.stack, child)
}

// EndRecord closes the most recently started record.
func (c *WriteContext) EndRecord() error {
	if len(c.stack) <= 1 {
		return fmt.Errorf("saxdb: EndRecord called with no matching StartRecord")
	}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}

// WriteString writes a scalar string leaf.
func (c *WriteContext) WriteString(name, value string) {
	c.current().SetString(name, value)
}

// WriteInt writes a scalar unsigned-integer leaf in decimal.
func (c *WriteContext) WriteInt(name string, value uint64) {
	c.current().SetString(name, strconv.FormatUint(value, 10))
}

// WriteStringList writes a list-of-strings leaf.
func (c *WriteContext) WriteStringList(name string, values []string) {
	c.current().SetList(name, values...)
}
