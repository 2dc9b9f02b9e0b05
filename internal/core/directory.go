package core

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrUnknownEmployee   = errors.New("employee not in directory")
	ErrAmbiguousEmployee = errors.New("employee name matches several employees")
)

// Employee is the directory view of an employee record.
type Employee struct {
	EmpID    string `json:"empId"`
	EmpName  string `json:"empName"`
	EmpPos   string `json:"empPos"`
	TeamName string `json:"teamName"`
}

// Directory indexes employees by name and by identifier.
type Directory struct {
	byName map[string][]Employee
	byID   map[string]Employee
	size   int
}

// NewDirectory builds a directory from employee rows.
func NewDirectory(rows []Row) *Directory {
	d := &Directory{
		byName: make(map[string][]Employee),
		byID:   make(map[string]Employee),
	}
	for _, r := range rows {
		e := Employee{
			EmpID:    strings.TrimSpace(r.Text("empId")),
			EmpName:  strings.TrimSpace(r.Text("empName")),
			EmpPos:   r.Text("empPos"),
			TeamName: r.Text("teamName"),
		}
		if e.EmpID == "" && e.EmpName == "" {
			continue
		}
		d.size++
		if e.EmpName != "" {
			d.byName[e.EmpName] = append(d.byName[e.EmpName], e)
		}
		for _, k := range EmpKeyVariants(e.EmpID) {
			d.byID[k] = e
		}
	}
	return d
}

// Len returns the number of employees in the directory.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return d.size
}

// ResolveName finds the single employee with the given display name.
func (d *Directory) ResolveName(name string) (Employee, error) {
	name = strings.TrimSpace(name)
	if d == nil || name == "" {
		return Employee{}, ErrUnknownEmployee
	}
	matches := d.byName[name]
	switch len(matches) {
	case 0:
		return Employee{}, ErrUnknownEmployee
	case 1:
		return matches[0], nil
	default:
		return Employee{}, ErrAmbiguousEmployee
	}
}

// ByID finds an employee by identifier, matching "E006" and "6" alike.
func (d *Directory) ByID(id string) (Employee, bool) {
	if d == nil {
		return Employee{}, false
	}
	for _, k := range EmpKeyVariants(id) {
		if e, ok := d.byID[k]; ok {
			return e, true
		}
	}
	return Employee{}, false
}

var empKeyPattern = regexp.MustCompile(`^[A-Z]+0*(\d+)$`)

// EmpKeyVariants returns the lookup keys of an employee id: the trimmed,
// upper-cased id and, for prefixed ids, the bare number ("E006" -> "E006", "6").
func EmpKeyVariants(id string) []string {
	s := strings.ToUpper(strings.TrimSpace(id))
	if s == "" {
		return nil
	}
	keys := []string{s}
	if m := empKeyPattern.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			if bare := strconv.Itoa(n); bare != s {
				keys = append(keys, bare)
			}
		}
	}
	return keys
}
