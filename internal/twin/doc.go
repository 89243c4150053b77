/*
Package twin applies a twin patch to every device of a class.

Service drains a registry query selecting twins by their "class" tag and then
patches all of them at once. A batch reports success only when every update
succeeded. Updates are not rolled back and are not cancelled when one of them
fails, so a failed batch may have patched any subset of the twins; each
outcome goes to the journal.
*/
package twin
