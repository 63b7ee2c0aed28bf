// Copyright 2025 Livepack Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emit

// helperSources holds the runtime helper library. Helpers are emitted as
// source text, never linked: a file that uses one declares it as a local
// const. The snippets are pre-minified; pretty output only affects the
// code around them.
var helperSources = map[string]string{
	// defineProps(obj, props[, proto]) creates or mutates obj from a
	// compact property map. Map entry shapes:
	//
	//	x: value            value, all flags set
	//	x: [value, bitmap]  value with flags
	//	x: [[arr]]          array value, all flags set
	//	x: [get, set]       accessor pair (second item not a number)
	//	x: [get, set, bm]   accessor pair with flags
	//	x: [bitmap]         keep value/accessor, update flags only
	//
	// Bitmap bits: 1 non-writable, 2 non-enumerable, 4 non-configurable,
	// 8 the real property name is __proto__.
	"defineProps": `(obj,props,proto)=>{if(proto!==void 0)Object.setPrototypeOf(obj,proto);for(const key of Object.keys(props)){let spec=props[key],name=key,desc={},bitmap=0,flagsOnly=false,accessor=false;if(!Array.isArray(spec)){desc.value=spec}else if(spec.length===1){if(Array.isArray(spec[0])){desc.value=spec[0]}else{bitmap=spec[0];flagsOnly=true}}else if(spec.length===2&&typeof spec[1]==="number"){desc.value=spec[0];bitmap=spec[1]}else{accessor=true;if(spec[0]!==void 0)desc.get=spec[0];if(spec[1]!==void 0)desc.set=spec[1];bitmap=spec[2]||0}if(bitmap&8)name="__proto__";if(!accessor&&!flagsOnly)desc.writable=!(bitmap&1);desc.enumerable=!(bitmap&2);desc.configurable=!(bitmap&4);Object.defineProperty(obj,name,desc)}return obj}`,

	// createArguments recreates an exotic arguments object.
	"createArguments": `(...values)=>function(){return arguments}(...values)`,

	// createBinding returns a getter/setter pair for an ESM live binding;
	// subscribers re-read after each assignment.
	"createBinding": `value=>{const subs=[];return[()=>value,v=>{value=v;for(const s of subs)s(v)},s=>subs.push(s)]}`,

	// createScopeBinding shares one variable between modules: the
	// defining module calls the setter, consumers read via the getter.
	"createScopeBinding": `()=>{let value;return[()=>value,v=>value=v]}`,

	// evalInScope rebuilds a direct-eval context: the captured scope's
	// variables are reachable through a with-wrapped proxy object, const
	// writes raise, and this/arguments are re-projected.
	"evalInScope": `function(code,localEval,isStrict,thisIsStrict){var scope={},i;for(i=4;i<arguments.length;i+=2){(function(name,binding){Object.defineProperty(scope,name,{get:binding[0],set:binding[1]||function(){throw new TypeError("Assignment to constant variable.")}})})(arguments[i],arguments[i+1])}return localEval("with(arguments[0]){"+(isStrict?'"use strict";':"")+code+"}").call(thisIsStrict?void 0:this,scope)}`,

	// memoize caches a function's first result under fn._value.
	"memoize": `fn=>function(){return"_value"in fn?fn._value:fn._value=fn.apply(this,arguments)}`,

	// Import helpers for async split points. Each returned function
	// yields, per split point, a stable promise of a module namespace
	// whose default export is the split value.
	"importModule": `(id,hasNoDeps)=>{let p;return()=>p||(p=import(id))}`,
	"importMany":   `(n,...ids)=>()=>Promise.all(ids.map(id=>import(id)))`,
	"importValue":  `id=>{let p;return()=>p||(p=import(id))}`,
}
