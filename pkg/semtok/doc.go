/*
Package semtok models provider token streams and decodes them into
absolute, single-line token spans.

Stream Layout:
------------

	 raw stream (groups of five integers)
	 +-----------+------------+--------+----------+----------+
	 | deltaLine | deltaStart | length | typeIdx  | modMask  |
	 +-----------+------------+--------+----------+----------+
	        |
	  running (line, col) cursor
	        |
	        v
	 +-------------------------------+
	 | TokenSpan{Line, StartCol,     |
	 |           EndCol, Type, Mods} |
	 +-------------------------------+

Columns arrive in the provider's character unit and leave as byte offsets
against the document's current line text, so a decode is tied to the
document version it ran against.

Incremental responses (Delta) splice integer ranges into a previously
returned stream instead of re-sending it; see ApplyEdits.
*/
package semtok
