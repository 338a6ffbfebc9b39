package handlebars

// registerBuiltins installs the core helper set. Sites and plugins override
// any of these by re-registering the same name; last registration wins.
func (e *Engine) registerBuiltins() {
	r := e.registry

	// Flow control (funcs_flow.go)
	r.RegisterBlock("if", blockIf, SourceCore)
	r.RegisterBlock("unless", blockUnless, SourceCore)
	r.RegisterBlock("each", blockEach, SourceCore)
	r.RegisterBlock("repeat", blockRepeat, SourceCore)
	r.RegisterBlock("with", blockWith, SourceCore)
	r.RegisterBlock("capture", blockCapture, SourceCore)
	r.Register("let", helperLet, SourceCore)
	r.Register("include", helperInclude, SourceCore)
	r.Register("i18n", helperI18n, SourceCore)

	// String manipulation (funcs_string.go, funcs_html.go)
	r.Register("string.length", stringLength, SourceCore)
	r.Register("string.lowercase", stringLowercase, SourceCore)
	r.Register("string.uppercase", stringUppercase, SourceCore)
	r.Register("string.titlecase", stringTitlecase, SourceCore)
	r.Register("string.trim", stringTrim, SourceCore)
	r.Register("string.replace", stringReplace, SourceCore)
	r.Register("string.slugify", stringSlugify, SourceCore)
	r.Register("string.encodeUrl", stringEncodeURL, SourceCore)
	r.Register("string.decodeUrl", stringDecodeURL, SourceCore)
	r.Register("string.encodeHtml", stringEncodeHTML, SourceCore)
	r.Register("string.htmlToText", stringHTMLToText, SourceCore)
	r.Register("string.htmlToMarkdown", stringHTMLToMarkdown, SourceCore)
	r.Register("string.markdown", stringMarkdown, SourceCore)

	// Math & logic (funcs_math.go)
	r.Register("add", mathAdd, SourceCore)
	r.Register("sub", mathSub, SourceCore)
	r.Register("mult", mathMult, SourceCore)
	r.Register("div", mathDiv, SourceCore)
	r.Register("mod", mathMod, SourceCore)
	r.Register("min", mathMin, SourceCore)
	r.Register("max", mathMax, SourceCore)
	r.Register("inc", mathInc, SourceCore)
	r.Register("dec", mathDec, SourceCore)
	r.Register("eq", logicEq, SourceCore)
	r.Register("ne", logicNe, SourceCore)
	r.Register("lt", logicLt, SourceCore)
	r.Register("le", logicLe, SourceCore)
	r.Register("gt", logicGt, SourceCore)
	r.Register("ge", logicGe, SourceCore)
	r.Register("and", logicAnd, SourceCore)
	r.Register("or", logicOr, SourceCore)
	r.Register("not", logicNot, SourceCore)
	r.Register("isSet", logicIsSet, SourceCore)
}
