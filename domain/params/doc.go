/*
Package params defines declarative request-parameter metadata.

A handler declares where each of its inputs comes from by attaching a
*FieldInfo to it. The FieldInfo is built once, when the handler is defined,
and is read (never modified) by the request-validation layer every time a
request is dispatched.

# Sources

Every FieldInfo carries a Kind naming its source:

  - path:         a segment captured by the route pattern
  - query:        a query-string value
  - header:       a request header
  - cookie:       a cookie value
  - body:         a field of the decoded request body
  - request_attr: a value stored on the request by middleware
  - depend:       the return value of a provider function

# Declaring fields

	userID, err := params.Path(params.Title("User ID"))
	page, err   := params.Query(params.Default(1), params.Extra("minimum", 1))
	token, err  := params.Header(params.Alias("X-Token"))
	filters, err := params.Query(params.Exclusive())   // whole query mapping
	tags, err   := params.Body(params.DefaultFactory(func() any { return []string{} }))
	user, err   := params.RequestAttr(params.Alias("current_user"))
	db          := params.Depends(openSession, true)

A field without Default or DefaultFactory is required. Supplying both is a
declaration error (ErrDefaultConflict) reported by the constructor, so the
mistake surfaces at startup instead of on the first request.

RequestAttr accepts only Default, DefaultFactory and Alias; any other option
yields ErrUnsupportedOption.

# Dependencies

A Depends field is resolved by calling its provider. Providers receive the
per-request Scope and may resolve their own dependencies through it:

	scope := params.NewScope()
	v, err := scope.Resolve(ctx, db)

With cache enabled a provider runs at most once per Scope, no matter how many
fields in the request's dependency graph refer to it.
*/
package params
