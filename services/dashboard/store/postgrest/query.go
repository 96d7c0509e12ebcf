// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package postgrest

import (
	"net/url"
	"strings"
)

// query builds PostgREST query strings: /rest/v1/<table>?col=op.value.
//
// Filters accumulate in call order; Encode sorts keys, which PostgREST
// does not care about.
type query struct {
	table  string
	params url.Values
	orders []string
}

func from(table string) *query {
	return &query{table: table, params: url.Values{}}
}

// Select sets the column list, including embedded resources such as
// "*,cards(*)".
func (q *query) Select(columns string) *query {
	q.params.Set("select", columns)
	return q
}

func (q *query) Eq(column, value string) *query {
	q.params.Add(column, "eq."+value)
	return q
}

func (q *query) IsNull(column string) *query {
	q.params.Add(column, "is.null")
	return q
}

// NotLike excludes rows whose column matches pattern. "*" is the wildcard.
func (q *query) NotLike(column, pattern string) *query {
	q.params.Add(column, "not.like."+pattern)
	return q
}

// Order appends a sort key. Nulls sort last, as in SQL ascending order.
func (q *query) Order(column string, ascending bool) *query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// ForeignOrder orders an embedded resource, e.g. cards.order=created_at.asc.
func (q *query) ForeignOrder(resource, column string, ascending bool) *query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.params.Set(resource+".order", column+"."+dir)
	return q
}

func (q *query) Limit(n string) *query {
	q.params.Set("limit", n)
	return q
}

// Path returns the request path relative to the project URL.
func (q *query) Path() string {
	return "/rest/v1/" + q.table
}

// Values returns the encoded filters.
func (q *query) Values() url.Values {
	out := url.Values{}
	for k, v := range q.params {
		out[k] = append([]string(nil), v...)
	}
	if len(q.orders) > 0 {
		out.Set("order", strings.Join(q.orders, ","))
	}
	return out
}
