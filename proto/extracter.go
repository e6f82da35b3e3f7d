package proto

// Frame reports the length of the first complete message in b without
// building any values. It fails exactly where Decode would.
func (d Decoder) Frame(b []byte) (int, error) {
	c := NewCursor(b)
	if err := d.skipValue(c, d.maxDepth()); err != nil {
		return 0, err
	}
	return c.Pos(), nil
}

func (d Decoder) skipValue(c *Cursor, depth int) error {
	tag, ok := c.Peek()
	if !ok {
		return shortErr(ErrIncomplete, c.Pos())
	}

	switch Kind(tag) {
	case SimpleStringKind, ErrorKind:
		c.Advance(1)
		_, err := c.ReadLine()
		return err
	case IntegerKind:
		c.Advance(1)
		_, err := readInteger(c)
		return err
	case BulkStringKind:
		c.Advance(1)
		size, err := readSize(c)
		if err != nil {
			return err
		}
		_, err = c.ReadExact(size)
		return err
	case ArrayKind:
		if depth <= 0 {
			return decodeErr(ErrTooDeep, c.Pos())
		}
		c.Advance(1)
		size, err := readSize(c)
		if err != nil {
			return err
		}
		for i := 0; i < size; i++ {
			if err := d.skipValue(c, depth-1); err != nil {
				return elementErr(err)
			}
		}
		return nil
	}

	return decodeErr(ErrUnknownType, c.Pos())
}
