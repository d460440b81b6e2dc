package analysis

// tree-sitter-python node kinds the walkers dispatch on. Kind strings are
// stable grammar identifiers; anything not named here falls through to plain
// child traversal.
const (
	nodeModule         = "module"
	nodeComment        = "comment"
	nodeImport         = "import_statement"
	nodeImportFrom     = "import_from_statement"
	nodeDottedName     = "dotted_name"
	nodeAliasedImport  = "aliased_import"
	nodeRelativeImport = "relative_import"
	nodeWildcardImport = "wildcard_import"

	nodeFunctionDef  = "function_definition"
	nodeClassDef     = "class_definition"
	nodeDecoratedDef = "decorated_definition"
	nodeDecorator    = "decorator"
	nodeBlock        = "block"

	nodeParameters     = "parameters"
	nodeTypedParameter = "typed_parameter"
	nodeDefaultParam   = "default_parameter"
	nodeTypedDefault   = "typed_default_parameter"
	nodeListSplat      = "list_splat_pattern"
	nodeDictSplat      = "dictionary_splat_pattern"

	nodeExpressionStmt = "expression_statement"
	nodeAssignment     = "assignment"
	nodeIdentifier     = "identifier"
	nodeAttribute      = "attribute"
	nodeString         = "string"
	nodeConcatString   = "concatenated_string"
	nodeStringStart    = "string_start"
	nodeStringEnd      = "string_end"
	nodeInterpolation  = "interpolation"
	nodeCall           = "call"
	nodeKeywordArg     = "keyword_argument"
	nodeTrue           = "true"

	nodeIf          = "if_statement"
	nodeElif        = "elif_clause"
	nodeElse        = "else_clause"
	nodeFor         = "for_statement"
	nodeWhile       = "while_statement"
	nodeTry         = "try_statement"
	nodeExcept      = "except_clause"
	nodeExceptGroup = "except_group_clause"
	nodeWith        = "with_statement"
	nodeAssert      = "assert_statement"
	nodeConditional = "conditional_expression"
	nodeBoolOp      = "boolean_operator"
	nodeForInClause = "for_in_clause"
)
