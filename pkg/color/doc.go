/*
Package color implements the markup language the simulation core emits and
the terminal-mode downgrade policy a session layer applies before writing to
a client: inline tags `|NAME|`, `|NNN|` (0-255), `|#RRGGBB|`, `|-|` (pop),
and `||` (literal `|`), greedily and longest-match parsed, with unknown tag
names logged and dropped.

The core itself only ever produces markup; rendering it down to raw ANSI
for a specific terminal mode (None, 16-color, 256-color, TrueColor) is a
session-layer concern this package also implements; the downgrade tables
and distance metric are fixed as part of that contract.
*/
package color
