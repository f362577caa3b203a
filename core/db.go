package core

// DBOrdering is a single `ORDER BY` term; Field is a column name once it reaches a repository.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// AllowedOrderings drops orderings on fields missing from `columns` ({field: column})
// and maps the remaining fields to their column names.
func AllowedOrderings(ordering []DBOrdering, columns map[string]string) []DBOrdering {
	if len(ordering) == 0 {
		return nil
	}
	allowed := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := columns[ord.Field]; ok {
			allowed = append(allowed, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	return allowed
}
