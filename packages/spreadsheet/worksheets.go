package spreadsheet

import (
	"cmp"
	"maps"
	"slices"
	"strings"
)

// WorksheetTable maps worksheet names to IDs. names compare case
// insensitively; IDs are never reused, so a formula resolved against a
// removed worksheet can not silently read a new one.
type WorksheetTable struct {
	nameToID map[string]uint32 // folded name -> ID
	idToName map[uint32]string // ID -> name as given

	worksheets map[uint32]*Worksheet

	nextID uint32
}

// NewWorksheetTable creates a new worksheet table
func NewWorksheetTable() *WorksheetTable {
	return &WorksheetTable{
		nameToID:   make(map[string]uint32),
		idToName:   make(map[uint32]string),
		worksheets: make(map[uint32]*Worksheet),
		nextID:     1, // start at 1, reserve 0 for no worksheet
	}
}

func fold(name string) string { return strings.ToLower(name) }

// Define adds a worksheet under name and returns its ID
func (wt *WorksheetTable) Define(name string, ws *Worksheet) uint32 {
	id := wt.nextID
	wt.nextID++
	wt.nameToID[fold(name)] = id
	wt.idToName[id] = name
	wt.worksheets[id] = ws
	return id
}

// Undefine removes the worksheet called name. returns false if there was
// none.
func (wt *WorksheetTable) Undefine(name string) bool {
	id, exists := wt.nameToID[fold(name)]
	if !exists {
		return false
	}
	delete(wt.nameToID, fold(name))
	delete(wt.idToName, id)
	delete(wt.worksheets, id)
	return true
}

// Rename changes the name of a worksheet, keeping its ID
func (wt *WorksheetTable) Rename(oldName, newName string) bool {
	id, exists := wt.nameToID[fold(oldName)]
	if !exists {
		return false
	}
	delete(wt.nameToID, fold(oldName))
	wt.nameToID[fold(newName)] = id
	wt.idToName[id] = newName
	return true
}

// Get returns the worksheet with the given ID
func (wt *WorksheetTable) Get(id uint32) (*Worksheet, bool) {
	ws, exists := wt.worksheets[id]
	return ws, exists
}

// GetByName returns the worksheet called name
func (wt *WorksheetTable) GetByName(name string) (*Worksheet, bool) {
	id, exists := wt.nameToID[fold(name)]
	if !exists {
		return nil, false
	}
	return wt.Get(id)
}

// ID returns the ID of the worksheet called name
func (wt *WorksheetTable) ID(name string) (uint32, bool) {
	id, exists := wt.nameToID[fold(name)]
	return id, exists
}

// Name returns the name of the worksheet with the given ID
func (wt *WorksheetTable) Name(id uint32) (string, bool) {
	name, exists := wt.idToName[id]
	return name, exists
}

// Contains checks if a worksheet called name exists
func (wt *WorksheetTable) Contains(name string) bool {
	_, exists := wt.nameToID[fold(name)]
	return exists
}

// All returns the worksheets in creation order
func (wt *WorksheetTable) All() []*Worksheet {
	return slices.SortedFunc(maps.Values(wt.worksheets), func(a, b *Worksheet) int {
		return cmp.Compare(a.id, b.id)
	})
}

// Count returns the number of worksheets
func (wt *WorksheetTable) Count() int { return len(wt.worksheets) }
