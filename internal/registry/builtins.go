package registry

import "sort"

// builtinModules is the fixed allow-list of standard-library and
// interpreter-builtin top-level names. Imports of these are neither
// internal nor external and are never reported.
var builtinModules = map[string]struct{}{}

func init() {
	for _, name := range []string{
		"__future__", "_thread", "abc", "argparse", "array", "ast",
		"asyncio", "atexit", "base64", "binascii", "bisect", "builtins",
		"bz2", "calendar", "cmath", "cmd", "code", "codecs", "collections",
		"concurrent", "configparser", "contextlib", "contextvars", "copy",
		"copyreg", "csv", "ctypes", "dataclasses", "datetime", "decimal",
		"difflib", "dis", "doctest", "email", "enum", "errno", "faulthandler",
		"fcntl", "filecmp", "fileinput", "fnmatch", "fractions", "ftplib",
		"functools", "gc", "getopt", "getpass", "gettext", "glob", "graphlib",
		"grp", "gzip", "hashlib", "heapq", "hmac", "html", "http", "imaplib",
		"importlib", "inspect", "io", "ipaddress", "itertools", "json",
		"keyword", "linecache", "locale", "logging", "lzma", "mailbox",
		"math", "mimetypes", "mmap", "multiprocessing", "numbers", "operator",
		"optparse", "os", "pathlib", "pdb", "pickle", "pickletools", "pkgutil",
		"platform", "plistlib", "poplib", "posixpath", "pprint", "profile",
		"pstats", "pty", "pwd", "py_compile", "pydoc", "queue", "quopri",
		"random", "re", "readline", "reprlib", "resource", "runpy", "sched",
		"secrets", "select", "selectors", "shelve", "shlex", "shutil",
		"signal", "site", "smtplib", "socket", "socketserver", "sqlite3",
		"ssl", "stat", "statistics", "string", "stringprep", "struct",
		"subprocess", "symtable", "sys", "sysconfig", "syslog", "tarfile",
		"tempfile", "termios", "textwrap", "threading", "time", "timeit",
		"tkinter", "token", "tokenize", "tomllib", "trace", "traceback",
		"tracemalloc", "tty", "turtle", "types", "typing", "unicodedata",
		"unittest", "urllib", "uuid", "venv", "warnings", "wave", "weakref",
		"webbrowser", "wsgiref", "xml", "xmlrpc", "zipapp", "zipfile",
		"zipimport", "zlib", "zoneinfo",
	} {
		builtinModules[name] = struct{}{}
	}
}

// IsBuiltin reports whether a top-level name is on the allow-list.
func IsBuiltin(topLevel string) bool {
	_, ok := builtinModules[topLevel]
	return ok
}

// Builtins returns the allow-list sorted by name.
func Builtins() []string {
	names := make([]string, 0, len(builtinModules))
	for name := range builtinModules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
